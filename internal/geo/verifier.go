package geo

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidCoordinates is returned for samples outside valid lat/lon ranges.
// This is a hard failure, not a flag.
var ErrInvalidCoordinates = errors.New("coordinates outside valid range")

// Verification flags raised by the server-side verifier. Flags are advisory
// on their own; see Verifier.Verify for when they turn into a rejection.
const (
	FlagLowPrecision        = "low_precision"
	FlagLowAccuracy         = "low_accuracy"
	FlagStaleTimestamp      = "stale_timestamp"
	FlagRoundCoordinates    = "round_coordinates"
	FlagImplausibleAccuracy = "implausible_accuracy"
	FlagImplausibleSpeed    = "implausible_speed"
)

// VerifierConfig bounds for server-side location verification.
type VerifierConfig struct {
	// MaxAccuracyMeters is the worst acceptable reported accuracy before the
	// low_accuracy flag is raised. Default 100.
	MaxAccuracyMeters float64
	// MaxSampleAge is how old a sample's CapturedAt may be before the
	// stale_timestamp flag is raised. Default 60s.
	MaxSampleAge time.Duration
	// MinDecimalPlaces is the minimum coordinate precision; coarser
	// coordinates raise low_precision. Default 4.
	MinDecimalPlaces int
	// MaxSpeedKmh is the implied-speed ceiling between consecutive samples
	// before implausible_speed is raised. Default 1000.
	MaxSpeedKmh float64
}

// DefaultVerifierConfig returns the default verification bounds.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		MaxAccuracyMeters: 100,
		MaxSampleAge:      60 * time.Second,
		MinDecimalPlaces:  4,
		MaxSpeedKmh:       1000,
	}
}

// VerifyResult is the outcome of server-side verification of one sample.
type VerifyResult struct {
	Evaluation Evaluation
	Flags      []string
	// Rejected is true when the evaluation is uncertain and a precision or
	// accuracy flag is present: uncertainty plus suspicion fails closed.
	Rejected bool
}

// Flagged reports whether the given flag was raised.
func (r VerifyResult) Flagged(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Verifier performs server-side verification of reported locations: range
// checks, anti-spoofing flags, and the fail-closed rule for uncertain
// evaluations.
type Verifier struct {
	cfg  VerifierConfig
	nowF func() time.Time
}

// NewVerifier returns a Verifier with the given config. Zero config fields
// fall back to defaults.
func NewVerifier(cfg VerifierConfig) *Verifier {
	def := DefaultVerifierConfig()
	if cfg.MaxAccuracyMeters <= 0 {
		cfg.MaxAccuracyMeters = def.MaxAccuracyMeters
	}
	if cfg.MaxSampleAge <= 0 {
		cfg.MaxSampleAge = def.MaxSampleAge
	}
	if cfg.MinDecimalPlaces <= 0 {
		cfg.MinDecimalPlaces = def.MinDecimalPlaces
	}
	if cfg.MaxSpeedKmh <= 0 {
		cfg.MaxSpeedKmh = def.MaxSpeedKmh
	}
	return &Verifier{cfg: cfg, nowF: func() time.Time { return time.Now().UTC() }}
}

// Verify evaluates the sample against the fences and applies the anti-spoof
// checks. previous is the most recent earlier sample for the same user, nil
// when none is known. Returns ErrInvalidCoordinates for out-of-range lat/lon.
func (v *Verifier) Verify(sample Sample, fences []Geofence, previous *Sample) (VerifyResult, error) {
	if !sample.Coordinate.Valid() {
		return VerifyResult{}, ErrInvalidCoordinates
	}

	var res VerifyResult
	if ev, ok := Evaluate(sample, fences); ok {
		res.Evaluation = ev
	}

	if decimalPlaces(sample.Latitude) < v.cfg.MinDecimalPlaces ||
		decimalPlaces(sample.Longitude) < v.cfg.MinDecimalPlaces {
		res.Flags = append(res.Flags, FlagLowPrecision)
	}
	if sample.AccuracyMeters > v.cfg.MaxAccuracyMeters {
		res.Flags = append(res.Flags, FlagLowAccuracy)
	}
	if !sample.CapturedAt.IsZero() && v.nowF().Sub(sample.CapturedAt) > v.cfg.MaxSampleAge {
		res.Flags = append(res.Flags, FlagStaleTimestamp)
	}
	if isWholeDegree(sample.Latitude) && isWholeDegree(sample.Longitude) {
		res.Flags = append(res.Flags, FlagRoundCoordinates)
	}
	if sample.AccuracyMeters < 1 {
		res.Flags = append(res.Flags, FlagImplausibleAccuracy)
	}
	if previous != nil && !previous.CapturedAt.IsZero() && !sample.CapturedAt.IsZero() {
		if speed := impliedSpeedKmh(*previous, sample); speed > v.cfg.MaxSpeedKmh {
			res.Flags = append(res.Flags, FlagImplausibleSpeed)
		}
	}

	if res.Evaluation.Verdict == VerdictUncertain &&
		(res.Flagged(FlagLowPrecision) || res.Flagged(FlagLowAccuracy)) {
		res.Rejected = true
	}
	return res, nil
}

// decimalPlaces returns how many decimal digits of precision the value
// carries, capped at 6. A value whose fractional part is exhausted after n
// digits has n decimal places.
func decimalPlaces(v float64) int {
	const maxPlaces = 6
	v = math.Abs(v)
	for n := 0; n < maxPlaces; n++ {
		scaled := v * math.Pow(10, float64(n))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9*math.Max(1, scaled) {
			return n
		}
	}
	return maxPlaces
}

func isWholeDegree(v float64) bool {
	return v == math.Trunc(v)
}

// impliedSpeedKmh returns the speed required to travel between the two
// samples in the time between their capture instants. Returns 0 when the
// interval is not positive.
func impliedSpeedKmh(from, to Sample) float64 {
	dt := to.CapturedAt.Sub(from.CapturedAt).Hours()
	if dt <= 0 {
		return 0
	}
	km := Distance(from.Coordinate, to.Coordinate) / 1000
	return km / dt
}
