package geo

// Verdict is the three-way outcome of comparing a sample against a fence
// under GPS-accuracy uncertainty.
type Verdict string

const (
	// VerdictInRange means the whole accuracy circle fits inside the fence.
	VerdictInRange Verdict = "in_range"
	// VerdictOutOfRange means the accuracy circle lies entirely outside the fence.
	VerdictOutOfRange Verdict = "out_of_range"
	// VerdictUncertain means the accuracy circle straddles the fence boundary.
	// Uncertain resolves leniently: WithinRange is distance <= radius, but the
	// result is marked non-definitive.
	VerdictUncertain Verdict = "uncertain"
)

// Evaluation is the result of evaluating one sample against one or more fences.
type Evaluation struct {
	Verdict Verdict
	// WithinRange is the resolved in/out decision. For Uncertain it is the
	// lenient distance <= radius tie-break.
	WithinRange bool
	// Definitive is false only for Uncertain verdicts.
	Definitive bool
	// GeofenceID is the id of the nearest fence ("" when evaluated against a
	// bare point with no fence id).
	GeofenceID string
	// DistanceMeters is the distance from the sample to the nearest fence center.
	DistanceMeters float64
	// DistanceFromEdgeMeters is how far outside the fence boundary the sample
	// is; 0 when inside.
	DistanceFromEdgeMeters float64
}

// EvaluateOne compares the sample against a single fence.
//
// Bounds: distance + accuracy <= radius is definitely in range;
// distance - accuracy > radius is definitely out of range; everything else is
// uncertain and resolved leniently.
func EvaluateOne(sample Sample, fence Geofence) Evaluation {
	d := Distance(sample.Coordinate, fence.Center)
	ev := Evaluation{
		GeofenceID:     fence.ID,
		DistanceMeters: d,
	}
	if d > fence.RadiusMeters {
		ev.DistanceFromEdgeMeters = d - fence.RadiusMeters
	}
	switch {
	case d+sample.AccuracyMeters <= fence.RadiusMeters:
		ev.Verdict = VerdictInRange
		ev.WithinRange = true
		ev.Definitive = true
	case d-sample.AccuracyMeters > fence.RadiusMeters:
		ev.Verdict = VerdictOutOfRange
		ev.WithinRange = false
		ev.Definitive = true
	default:
		ev.Verdict = VerdictUncertain
		ev.WithinRange = d <= fence.RadiusMeters
		ev.Definitive = false
	}
	return ev
}

// Evaluate compares the sample against all fences and returns the nearest
// fence's result, so distance reporting is always accurate even when a
// farther fence would have matched. Returns ok=false when fences is empty.
func Evaluate(sample Sample, fences []Geofence) (Evaluation, bool) {
	if len(fences) == 0 {
		return Evaluation{}, false
	}
	best := EvaluateOne(sample, fences[0])
	for _, f := range fences[1:] {
		ev := EvaluateOne(sample, f)
		if ev.DistanceMeters < best.DistanceMeters {
			best = ev
		}
	}
	return best, true
}
