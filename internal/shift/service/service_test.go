package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
	policyengine "shiftledger/internal/policy/engine"
	"shiftledger/internal/shift/domain"
	shiftrepo "shiftledger/internal/shift/repository"
)

type memShiftRepo struct {
	shifts     map[string]*domain.Shift
	staleCount int64
}

func newMemShiftRepo() *memShiftRepo {
	return &memShiftRepo{shifts: map[string]*domain.Shift{}}
}

func (r *memShiftRepo) GetOpenByUser(_ context.Context, userID string) (*domain.Shift, error) {
	for _, s := range r.shifts {
		if s.UserID == userID && s.Status == domain.StatusOpen {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memShiftRepo) Create(_ context.Context, s *domain.Shift) error {
	for _, existing := range r.shifts {
		if existing.UserID == s.UserID && existing.Status == domain.StatusOpen {
			return shiftrepo.ErrOpenShiftExists
		}
	}
	cp := *s
	r.shifts[s.ID] = &cp
	return nil
}

func (r *memShiftRepo) Close(_ context.Context, s *domain.Shift) error {
	existing, ok := r.shifts[s.ID]
	if !ok || existing.Status != domain.StatusOpen {
		return shiftrepo.ErrShiftNotOpen
	}
	cp := *s
	cp.Status = domain.StatusClosed
	r.shifts[s.ID] = &cp
	return nil
}

func (r *memShiftRepo) MarkStaleByOrgPolicy(_ context.Context) (int64, error) {
	return r.staleCount, nil
}

func (r *memShiftRepo) ClosedMinutesInWindow(_ context.Context, userID string, from, to time.Time) (int, error) {
	total := 0
	for _, s := range r.shifts {
		if s.UserID != userID || s.Status != domain.StatusClosed || s.DurationMinutes == nil {
			continue
		}
		if !s.ClockInAt.Before(from) && s.ClockInAt.Before(to) {
			total += *s.DurationMinutes
		}
	}
	return total, nil
}

type memOrgRepo struct {
	orgs map[string]*orgdomain.Organization
}

func (r *memOrgRepo) GetByID(_ context.Context, id string) (*orgdomain.Organization, error) {
	return r.orgs[id], nil
}

type memFenceRepo struct {
	zones []geo.Geofence
}

func (r *memFenceRepo) ListActiveZones(_ context.Context, _ string) ([]geo.Geofence, error) {
	return r.zones, nil
}

func testOrg(strict bool) *orgdomain.Organization {
	return orgdomain.MergeWithDefaults(&orgdomain.Organization{
		ID:         "org-1",
		Name:       "Acme Staffing",
		StrictMode: strict,
	})
}

func siteZone() geo.Geofence {
	return geo.Geofence{
		ID:           "fence-1",
		Center:       geo.Coordinate{Latitude: 40.712800, Longitude: -74.006100},
		RadiusMeters: 100,
	}
}

func sampleAt(lat, lon, accuracy float64) geo.Sample {
	return geo.Sample{
		Coordinate:     geo.Coordinate{Latitude: lat, Longitude: lon},
		AccuracyMeters: accuracy,
		CapturedAt:     time.Now().UTC(),
	}
}

func newTestService(shifts *memShiftRepo, org *orgdomain.Organization, zones []geo.Geofence) *Service {
	return NewService(
		shifts,
		&memOrgRepo{orgs: map[string]*orgdomain.Organization{org.ID: org}},
		&memFenceRepo{zones: zones},
		policyengine.NewOPAEvaluator(),
		nil,
	)
}

func TestClockInInRange(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(true), []geo.Geofence{siteZone()})

	res, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	})
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if res.Status != domain.StatusOpen {
		t.Errorf("status = %s, want open", res.Status)
	}
	if res.LocationStatus != domain.LocationInRange {
		t.Errorf("location status = %s, want in_range", res.LocationStatus)
	}
	if res.Evaluation.GeofenceID != "fence-1" {
		t.Errorf("geofence = %q, want fence-1", res.Evaluation.GeofenceID)
	}
}

func TestClockInAlreadyOpen(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	loc := sampleAt(40.712800, -74.006100, 10)
	if _, err := svc.ClockIn(context.Background(), ClockInParams{OrgID: "org-1", UserID: "user-1", Location: loc}); err != nil {
		t.Fatalf("first ClockIn: %v", err)
	}
	_, err := svc.ClockIn(context.Background(), ClockInParams{OrgID: "org-1", UserID: "user-1", Location: loc})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second ClockIn err = %v, want ErrAlreadyOpen", err)
	}
}

func TestClockInStrictOutOfRange(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(true), []geo.Geofence{siteZone()})

	// ~1.1km north of the fence center.
	_, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.722800, -74.006100, 10),
	})
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("ClockIn err = %v, want OutOfRangeError", err)
	}
	if !oor.RequiresRequest {
		t.Error("RequiresRequest = false, want true")
	}
	if len(shifts.shifts) != 0 {
		t.Errorf("shift persisted despite policy rejection")
	}
}

func TestClockInLenientOutOfRange(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	res, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.722800, -74.006100, 10),
	})
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if res.LocationStatus != domain.LocationOutOfRange {
		t.Errorf("location status = %s, want out_of_range", res.LocationStatus)
	}
}

func TestClockInUnverifiableRejected(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	// ~55m from center with a 150m radius of uncertainty: the verdict is
	// uncertain, and the accuracy exceeds the org ceiling.
	_, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.713300, -74.006100, 150),
	})
	var ve *VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("ClockIn err = %v, want VerificationError", err)
	}
	if !ve.Result.Rejected {
		t.Error("Result.Rejected = false")
	}
}

func TestClockInFallsBackToPrimaryPoint(t *testing.T) {
	shifts := newMemShiftRepo()
	org := testOrg(true)
	org.PrimaryPoint = &geo.Geofence{
		ID:           "primary",
		Center:       geo.Coordinate{Latitude: 34.052200, Longitude: -118.243700},
		RadiusMeters: 150,
	}
	svc := newTestService(shifts, org, nil)

	res, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(34.052200, -118.243700, 10),
	})
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if res.Evaluation.GeofenceID != "primary" {
		t.Errorf("geofence = %q, want primary", res.Evaluation.GeofenceID)
	}
}

func TestClockInNoZonesConfigured(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(true), nil)

	res, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(51.507400, -0.127800, 10),
	})
	if err != nil {
		t.Fatalf("ClockIn with no zones: %v", err)
	}
	if res.LocationStatus != domain.LocationInRange {
		t.Errorf("location status = %s, want in_range", res.LocationStatus)
	}
}

func TestClockOut(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	base := time.Now().UTC()
	svc.nowF = func() time.Time { return base }
	loc := sampleAt(40.712800, -74.006100, 10)
	if _, err := svc.ClockIn(context.Background(), ClockInParams{OrgID: "org-1", UserID: "user-1", Location: loc}); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	svc.nowF = func() time.Time { return base.Add(8 * time.Hour) }
	res, err := svc.ClockOut(context.Background(), ClockOutParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	})
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	// 8h with no recorded break triggers the default 30-minute auto break;
	// the reported duration is the net worked time, same as the shift row.
	if res.DurationMinutes != 450 {
		t.Errorf("DurationMinutes = %d, want 450", res.DurationMinutes)
	}
	if res.BreakMinutes != 30 {
		t.Errorf("BreakMinutes = %d, want 30", res.BreakMinutes)
	}
	if res.NetMinutes != 450 {
		t.Errorf("NetMinutes = %d, want 450", res.NetMinutes)
	}

	open, err := shifts.GetOpenByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetOpenByUser: %v", err)
	}
	if open != nil {
		t.Error("shift still open after clock-out")
	}
}

func TestClockOutNoOpenShift(t *testing.T) {
	svc := newTestService(newMemShiftRepo(), testOrg(false), []geo.Geofence{siteZone()})

	_, err := svc.ClockOut(context.Background(), ClockOutParams{
		OrgID:    "org-1",
		UserID:   "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	})
	if !errors.Is(err, ErrNoOpenShift) {
		t.Errorf("ClockOut err = %v, want ErrNoOpenShift", err)
	}
}

func TestClockOutOutOfRangeStillCloses(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(true), []geo.Geofence{siteZone()})

	base := time.Now().UTC()
	svc.nowF = func() time.Time { return base }
	if _, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-1", UserID: "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	}); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	svc.nowF = func() time.Time { return base.Add(4 * time.Hour) }
	res, err := svc.ClockOut(context.Background(), ClockOutParams{
		OrgID: "org-1", UserID: "user-1",
		// Far outside the fence; strict mode must not block leaving.
		Location: sampleAt(40.722800, -74.006100, 10),
	})
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if res.LocationStatus != domain.LocationOutOfRange {
		t.Errorf("location status = %s, want out_of_range", res.LocationStatus)
	}
}

func TestClockOutImplausibleSpeedFlagged(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	base := time.Now().UTC()
	svc.nowF = func() time.Time { return base }
	in := sampleAt(40.712800, -74.006100, 10)
	in.CapturedAt = base
	if _, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-1", UserID: "user-1", Location: in,
	}); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	// New York to Los Angeles in ten minutes: the clock-in sample is the
	// prior fix, so the implied speed must be flagged.
	svc.nowF = func() time.Time { return base.Add(10 * time.Minute) }
	out := sampleAt(34.052200, -118.243700, 10)
	out.CapturedAt = base.Add(10 * time.Minute)
	res, err := svc.ClockOut(context.Background(), ClockOutParams{
		OrgID: "org-1", UserID: "user-1", Location: out,
	})
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	flagged := false
	for _, f := range res.Flags {
		if f == geo.FlagImplausibleSpeed {
			flagged = true
		}
	}
	if !flagged {
		t.Errorf("flags = %v, want %s", res.Flags, geo.FlagImplausibleSpeed)
	}
	// Advisory only: the shift still closes.
	open, _ := shifts.GetOpenByUser(context.Background(), "user-1")
	if open != nil {
		t.Error("shift still open after flagged clock-out")
	}
}

func TestClockOutOvertimeSplit(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	base := time.Now().UTC()
	// 38h of closed work earlier in the rolling week.
	prior := 2280
	shifts.shifts["prior"] = &domain.Shift{
		ID: "prior", OrgID: "org-1", UserID: "user-1",
		Status:          domain.StatusClosed,
		ClockInAt:       base.Add(-48 * time.Hour),
		DurationMinutes: &prior,
	}

	svc.nowF = func() time.Time { return base }
	if _, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-1", UserID: "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	}); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	// 5h shift, recorded break suppresses the auto break.
	svc.nowF = func() time.Time { return base.Add(5 * time.Hour) }
	res, err := svc.ClockOut(context.Background(), ClockOutParams{
		OrgID: "org-1", UserID: "user-1",
		Location:     sampleAt(40.712800, -74.006100, 10),
		BreakMinutes: 0,
	})
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if res.RegularHours != 2 || res.OvertimeHours != 3 {
		t.Errorf("split = (%.1f, %.1f), want (2.0, 3.0)", res.RegularHours, res.OvertimeHours)
	}
}

func TestClockInUnknownOrg(t *testing.T) {
	svc := newTestService(newMemShiftRepo(), testOrg(false), nil)
	_, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-missing", UserID: "user-1",
		Location: sampleAt(40.712800, -74.006100, 10),
	})
	if !errors.Is(err, ErrOrganizationUnknown) {
		t.Errorf("ClockIn err = %v, want ErrOrganizationUnknown", err)
	}
}

func TestSweepStale(t *testing.T) {
	shifts := newMemShiftRepo()
	shifts.staleCount = 3
	svc := newTestService(shifts, testOrg(false), nil)

	n, err := svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if n != 3 {
		t.Errorf("SweepStale = %d, want 3", n)
	}
}

func TestClockInOfflineReplayUsesCapturedInstant(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	captured := now.Add(-3 * time.Hour)
	svc.nowF = func() time.Time { return now }

	loc := sampleAt(40.712800, -74.006100, 10)
	loc.CapturedAt = captured
	res, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-1", UserID: "user-1", Location: loc, Offline: true,
	})
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	open, _ := shifts.GetOpenByUser(context.Background(), "user-1")
	if open == nil {
		t.Fatal("no open shift persisted")
	}
	if !open.ClockInAt.Equal(captured) {
		t.Errorf("ClockInAt = %v, want captured instant %v", open.ClockInAt, captured)
	}
	if !open.WasOffline {
		t.Error("shift not tagged offline")
	}
	if res.LocationStatus != domain.LocationInRange {
		t.Errorf("location status = %s, want in_range", res.LocationStatus)
	}
}

func TestClockInLiveIgnoresCapturedInstant(t *testing.T) {
	shifts := newMemShiftRepo()
	svc := newTestService(shifts, testOrg(false), []geo.Geofence{siteZone()})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.nowF = func() time.Time { return now }

	loc := sampleAt(40.712800, -74.006100, 10)
	loc.CapturedAt = now.Add(-30 * time.Second)
	if _, err := svc.ClockIn(context.Background(), ClockInParams{
		OrgID: "org-1", UserID: "user-1", Location: loc,
	}); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	open, _ := shifts.GetOpenByUser(context.Background(), "user-1")
	if !open.ClockInAt.Equal(now) {
		t.Errorf("ClockInAt = %v, want now %v", open.ClockInAt, now)
	}
}
