// Package service implements the shift state machine: clock-in, clock-out,
// and the staleness sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
	policyengine "shiftledger/internal/policy/engine"
	"shiftledger/internal/shift/domain"
	shiftrepo "shiftledger/internal/shift/repository"
	"shiftledger/internal/timesheet"
)

// Sentinel errors for the shift service; the HTTP layer maps them to status codes.
var (
	ErrAlreadyOpen         = errors.New("user already has an open shift")
	ErrNoOpenShift         = errors.New("user has no open shift")
	ErrOrganizationUnknown = errors.New("organization not found")
)

// OutOfRangeError is the strict-mode policy rejection. It carries the
// evaluation so the caller can show the distance and route the employee to a
// check-in request.
type OutOfRangeError struct {
	Evaluation      geo.Evaluation
	RequiresRequest bool
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("location is %.0fm outside the nearest geofence", e.Evaluation.DistanceFromEdgeMeters)
}

// VerificationError is a failed location verification ("could not verify
// location"). It carries the flags so the caller can decide between retrying
// and submitting a request.
type VerificationError struct {
	Result geo.VerifyResult
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("could not verify location (flags: %v)", e.Result.Flags)
}

// ShiftRepo is the minimal shift repository needed by the service.
type ShiftRepo interface {
	GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error)
	Create(ctx context.Context, s *domain.Shift) error
	Close(ctx context.Context, s *domain.Shift) error
	MarkStaleByOrgPolicy(ctx context.Context) (int64, error)
	ClosedMinutesInWindow(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// OrgRepo is the minimal organization repository needed by the service.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Organization, error)
}

// FenceRepo lists the active geofences for an org.
type FenceRepo interface {
	ListActiveZones(ctx context.Context, orgID string) ([]geo.Geofence, error)
}

// AuditLogger writes best-effort audit entries for clock events.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Service orchestrates the shift lifecycle.
type Service struct {
	shifts ShiftRepo
	orgs   OrgRepo
	fences FenceRepo
	policy policyengine.Evaluator
	audit  AuditLogger
	nowF   func() time.Time
}

// NewService returns a shift service with the given dependencies. audit may be nil.
func NewService(shifts ShiftRepo, orgs OrgRepo, fences FenceRepo, policy policyengine.Evaluator, audit AuditLogger) *Service {
	return &Service{
		shifts: shifts,
		orgs:   orgs,
		fences: fences,
		policy: policy,
		audit:  audit,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// ClockInParams are the inputs to ClockIn.
type ClockInParams struct {
	OrgID    string
	UserID   string
	Location geo.Sample
	// Offline tags the shift as originating from an offline replay.
	Offline bool
}

// ClockInResult is the outcome of a successful clock-in.
type ClockInResult struct {
	ShiftID        string
	Status         domain.Status
	LocationStatus domain.LocationStatus
	Evaluation     geo.Evaluation
	Flags          []string
}

// ClockIn verifies the reported location, applies org clock-in policy, and
// atomically opens a shift. The open-shift check and the insert are one
// statement against the partial unique index, so two devices racing a
// clock-in cannot both win.
func (s *Service) ClockIn(ctx context.Context, p ClockInParams) (*ClockInResult, error) {
	org, err := s.orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationUnknown
	}

	zones, err := s.activeZones(ctx, org)
	if err != nil {
		return nil, err
	}

	res, err := s.verify(p.Location, zones, org, nil)
	if err != nil {
		return nil, err
	}
	if res.Rejected {
		return nil, &VerificationError{Result: res}
	}

	locationStatus := classify(res.Evaluation, zones)
	if len(zones) > 0 {
		decision, err := s.policy.EvaluateClockIn(ctx, org, res.Evaluation)
		if err != nil {
			return nil, err
		}
		if decision.RequireRequest {
			return nil, &OutOfRangeError{Evaluation: res.Evaluation, RequiresRequest: true}
		}
	}

	// Offline replays take effect at the captured instant, not the sync time.
	clockInAt := s.effectiveTime(p.Location, p.Offline)
	shift := BuildOpenShift(org, p.UserID, clockInAt, p.Location, res.Evaluation.GeofenceID, locationStatus, p.Offline)
	if err := shift.Validate(); err != nil {
		return nil, err
	}
	if err := s.shifts.Create(ctx, shift); err != nil {
		if errors.Is(err, shiftrepo.ErrOpenShiftExists) {
			return nil, ErrAlreadyOpen
		}
		return nil, err
	}

	s.logAudit(ctx, org.ID, p.UserID, "shift.clock_in", shift.ID,
		fmt.Sprintf(`{"location_status":%q,"offline":%v}`, locationStatus, p.Offline))

	return &ClockInResult{
		ShiftID:        shift.ID,
		Status:         shift.Status,
		LocationStatus: locationStatus,
		Evaluation:     res.Evaluation,
		Flags:          res.Flags,
	}, nil
}

// ClockOutParams are the inputs to ClockOut.
type ClockOutParams struct {
	OrgID        string
	UserID       string
	Location     geo.Sample
	BreakMinutes int
	Offline      bool
}

// ClockOutResult is the outcome of a successful clock-out. DurationMinutes is
// the net worked time, matching what the shift row stores; BreakMinutes is the
// deduction that produced it.
type ClockOutResult struct {
	ShiftID         string
	DurationMinutes int
	NetMinutes      int
	BreakMinutes    int
	LocationStatus  domain.LocationStatus
	CrossedMidnight bool
	RegularHours    float64
	OvertimeHours   float64
	// Flags are advisory verification flags on the clock-out sample; they
	// never block closing.
	Flags []string
}

// ClockOut closes the user's open shift. Geofence status is recorded for
// audit but never blocks closing: an employee must always be able to clock
// out, signal loss included.
func (s *Service) ClockOut(ctx context.Context, p ClockOutParams) (*ClockOutResult, error) {
	org, err := s.orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationUnknown
	}

	open, err := s.shifts.GetOpenByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoOpenShift
	}

	zones, err := s.activeZones(ctx, org)
	if err != nil {
		return nil, err
	}
	res, err := s.verify(p.Location, zones, org, &open.ClockInLocation)
	if err != nil {
		return nil, err
	}
	locationStatus := classify(res.Evaluation, zones)

	now := s.nowF()
	clockOutAt := s.effectiveTime(p.Location, p.Offline)
	calc, err := CloseShift(open, org, clockOutAt, p.Location, locationStatus, p.BreakMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.shifts.Close(ctx, open); err != nil {
		if errors.Is(err, shiftrepo.ErrShiftNotOpen) {
			return nil, ErrNoOpenShift
		}
		return nil, err
	}

	weekStart := now.Add(-7 * 24 * time.Hour)
	priorMinutes, err := s.shifts.ClosedMinutesInWindow(ctx, p.UserID, weekStart, open.ClockInAt)
	if err != nil {
		// Overtime split is reporting, not ledger state; log and carry on.
		log.Printf("shift: weekly window lookup failed for %s: %v", p.UserID, err)
		priorMinutes = 0
	}
	regular, overtime := timesheet.OvertimeSplit(float64(calc.NetMinutes)/60, float64(priorMinutes)/60)

	s.logAudit(ctx, org.ID, p.UserID, "shift.clock_out", open.ID,
		fmt.Sprintf(`{"location_status":%q,"duration_minutes":%d,"offline":%v}`, locationStatus, *open.DurationMinutes, p.Offline))

	return &ClockOutResult{
		ShiftID:         open.ID,
		DurationMinutes: calc.NetMinutes,
		NetMinutes:      calc.NetMinutes,
		BreakMinutes:    open.BreakMinutes,
		LocationStatus:  locationStatus,
		CrossedMidnight: calc.CrossedMidnight,
		RegularHours:    regular,
		OvertimeHours:   overtime,
		Flags:           res.Flags,
	}, nil
}

// GetCurrentOpenShift returns the user's open shift, or nil when none.
func (s *Service) GetCurrentOpenShift(ctx context.Context, userID string) (*domain.Shift, error) {
	return s.shifts.GetOpenByUser(ctx, userID)
}

// SweepStale marks shifts open past their org's threshold as stale. Safe to
// re-run and to run concurrently with clock-outs: the status guard in the
// repository means a shift is only ever moved open → stale.
func (s *Service) SweepStale(ctx context.Context) (int64, error) {
	n, err := s.shifts.MarkStaleByOrgPolicy(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("shift: staleness sweep flagged %d shift(s)", n)
	}
	return n, nil
}

// BuildOpenShift constructs the open shift a clock-in (direct or
// arbiter-approved) persists. The shift date follows the duration
// calculator's rule applied to the clock-in instant alone, in the org's
// timezone.
func BuildOpenShift(org *orgdomain.Organization, userID string, clockInAt time.Time, location geo.Sample, geofenceID string, status domain.LocationStatus, offline bool) *domain.Shift {
	now := time.Now().UTC()
	return &domain.Shift{
		ID:                    uuid.New().String(),
		OrgID:                 org.ID,
		UserID:                userID,
		GeofenceID:            geofenceID,
		Status:                domain.StatusOpen,
		ClockInAt:             clockInAt,
		ClockInLocation:       location,
		ClockInLocationStatus: status,
		ShiftDate:             timesheet.DateOf(clockInAt, org.Location()),
		WasOffline:            offline,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// CloseShift fills the clock-out fields of an open shift in place and
// returns the duration calculation. The auto-break policy applies only when
// no break was recorded. Used by direct clock-out and by arbiter approval.
func CloseShift(shift *domain.Shift, org *orgdomain.Organization, clockOutAt time.Time, location geo.Sample, status domain.LocationStatus, recordedBreak int) (timesheet.Result, error) {
	total := int(clockOutAt.Sub(shift.ClockInAt).Minutes())
	breakMin := timesheet.AutoBreak(total, recordedBreak, timesheet.BreakPolicy{
		AutoBreakThresholdMinutes: org.AutoBreakThresholdMinutes,
		AutoBreakMinutes:          org.AutoBreakMinutes,
	})
	calc, err := timesheet.Calculate(shift.ClockInAt, clockOutAt, breakMin, org.Location())
	if err != nil {
		return timesheet.Result{}, err
	}
	net := calc.NetMinutes
	shift.ClockOutAt = &clockOutAt
	shift.ClockOutLocation = &location
	shift.ClockOutLocationStatus = status
	shift.DurationMinutes = &net
	shift.BreakMinutes = breakMin
	shift.UpdatedAt = time.Now().UTC()
	return calc, nil
}

// activeZones returns the org's active fences, falling back to the primary
// point when none are configured.
func (s *Service) activeZones(ctx context.Context, org *orgdomain.Organization) ([]geo.Geofence, error) {
	zones, err := s.fences.ListActiveZones(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 && org.PrimaryPoint != nil {
		zones = []geo.Geofence{*org.PrimaryPoint}
	}
	return zones, nil
}

// effectiveTime is the instant a clock event takes effect: now for live
// requests, the capture instant for offline replays (when it is plausibly in
// the past).
func (s *Service) effectiveTime(location geo.Sample, offline bool) time.Time {
	now := s.nowF()
	if offline && !location.CapturedAt.IsZero() && location.CapturedAt.Before(now) {
		return location.CapturedAt.UTC()
	}
	return now
}

// verify runs server-side verification with the org's accuracy ceiling.
// previous is the user's last known sample (the clock-in location at
// clock-out), feeding the implied-speed check; nil when none is known.
func (s *Service) verify(sample geo.Sample, zones []geo.Geofence, org *orgdomain.Organization, previous *geo.Sample) (geo.VerifyResult, error) {
	v := geo.NewVerifier(geo.VerifierConfig{MaxAccuracyMeters: org.MaxAccuracyMeters})
	return v.Verify(sample, zones, previous)
}

// classify resolves the recorded location status. An org with no zones at
// all has nothing to be out of range of.
func classify(ev geo.Evaluation, zones []geo.Geofence) domain.LocationStatus {
	if len(zones) == 0 || ev.WithinRange {
		return domain.LocationInRange
	}
	return domain.LocationOutOfRange
}

func (s *Service) logAudit(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, orgID, userID, action, resource, metadata)
}
