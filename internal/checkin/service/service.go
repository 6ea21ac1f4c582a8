// Package service implements the check-in request arbiter: submission of
// manager-mediated clock events and their review.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"shiftledger/internal/checkin/domain"
	checkinrepo "shiftledger/internal/checkin/repository"
	"shiftledger/internal/db"
	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
	shiftdomain "shiftledger/internal/shift/domain"
	shiftrepo "shiftledger/internal/shift/repository"
	shiftservice "shiftledger/internal/shift/service"
)

// Sentinel errors for the arbiter; the HTTP layer maps them to status codes.
var (
	ErrRequestNotFound        = errors.New("check-in request not found")
	ErrInvalidReason          = errors.New("reason must be at least 10 characters")
	ErrInvalidHistoricalRange = errors.New("historical timestamp must be in the past and at most 30 days old")
	ErrAlreadyReviewed        = errors.New("request already reviewed")
	ErrRequestExpired         = errors.New("request review window has expired")
	ErrMissingDenialReason    = errors.New("denial requires a reason")
	ErrOrganizationUnknown    = errors.New("organization not found")
	ErrAlreadyOpen            = errors.New("user already has an open shift")
	ErrNoOpenShift            = errors.New("user has no open shift")
)

// ReviewWindow is how long a pending request stays reviewable.
const ReviewWindow = 24 * time.Hour

// RequestRepo is the request persistence surface the arbiter reads through.
type RequestRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	Create(ctx context.Context, r *domain.Request) error
	ListPendingByOrg(ctx context.Context, orgID string) ([]*domain.Request, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Request, error)
	ExpirePending(ctx context.Context) (int64, error)
}

// OrgRepo is the minimal organization repository needed by the arbiter.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*orgdomain.Organization, error)
}

// FenceRepo lists the active geofences for an org.
type FenceRepo interface {
	ListActiveZones(ctx context.Context, orgID string) ([]geo.Geofence, error)
}

// ShiftReader looks up shifts outside the approval transaction.
type ShiftReader interface {
	GetOpenByUser(ctx context.Context, userID string) (*shiftdomain.Shift, error)
}

// RequestWriter is the tx-scoped request mutation surface.
type RequestWriter interface {
	UpdateReview(ctx context.Context, r *domain.Request) (bool, error)
}

// ShiftWriter is the tx-scoped shift mutation surface.
type ShiftWriter interface {
	GetByID(ctx context.Context, id string) (*shiftdomain.Shift, error)
	GetOpenByUser(ctx context.Context, userID string) (*shiftdomain.Shift, error)
	Create(ctx context.Context, s *shiftdomain.Shift) error
	Close(ctx context.Context, s *shiftdomain.Shift) error
}

// Tx runs fn with request and shift writers bound to one database
// transaction, so an approval and its shift effect commit or roll back
// together.
type Tx interface {
	Run(ctx context.Context, fn func(requests RequestWriter, shifts ShiftWriter) error) error
}

// DBTx is the production Tx over a *sql.DB.
type DBTx struct {
	DB *sql.DB
}

func (t DBTx) Run(ctx context.Context, fn func(requests RequestWriter, shifts ShiftWriter) error) error {
	return db.WithTx(ctx, t.DB, func(tx *sql.Tx) error {
		return fn(checkinrepo.NewPostgresRepository(tx), shiftrepo.NewPostgresRepository(tx))
	})
}

// Service arbitrates check-in requests.
type Service struct {
	requests RequestRepo
	orgs     OrgRepo
	fences   FenceRepo
	shifts   ShiftReader
	tx       Tx
	audit    shiftservice.AuditLogger
	nowF     func() time.Time
}

// NewService returns a check-in request arbiter. audit may be nil.
func NewService(requests RequestRepo, orgs OrgRepo, fences FenceRepo, shifts ShiftReader, tx Tx, audit shiftservice.AuditLogger) *Service {
	return &Service{
		requests: requests,
		orgs:     orgs,
		fences:   fences,
		shifts:   shifts,
		tx:       tx,
		audit:    audit,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SubmitParams are the inputs to Submit.
type SubmitParams struct {
	OrgID    string
	UserID   string
	Location geo.Sample
	Reason   string
	// RequestType is optional; when empty the type is inferred from whether
	// the user has an open shift.
	RequestType domain.Type
	// RequestedAt is optional; when set it marks a historical request for a
	// missed clock event. Must be strictly past and at most 30 days old.
	RequestedAt *time.Time
}

// Submit records a pending check-in request for manager review.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*domain.Request, error) {
	org, err := s.orgs.GetByID(ctx, p.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationUnknown
	}
	if len(p.Reason) < domain.MinReasonLength {
		return nil, ErrInvalidReason
	}
	if !p.Location.Coordinate.Valid() {
		return nil, geo.ErrInvalidCoordinates
	}

	now := s.nowF()
	requestedAt := now
	if p.RequestedAt != nil {
		requestedAt = p.RequestedAt.UTC()
		if !requestedAt.Before(now) || now.Sub(requestedAt) > domain.MaxHistoricalAge {
			return nil, ErrInvalidHistoricalRange
		}
	}

	open, err := s.shifts.GetOpenByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	reqType := p.RequestType
	if reqType == "" {
		if open != nil {
			reqType = domain.TypeClockOut
		} else {
			reqType = domain.TypeClockIn
		}
	}
	shiftID := ""
	if reqType == domain.TypeClockOut && open != nil {
		shiftID = open.ID
	}

	req := &domain.Request{
		ID:          uuid.New().String(),
		OrgID:       org.ID,
		UserID:      p.UserID,
		ShiftID:     shiftID,
		RequestType: reqType,
		Status:      domain.StatusPending,
		Location:    p.Location,
		Reason:      p.Reason,
		RequestedAt: requestedAt,
		ExpiresAt:   now.Add(ReviewWindow),
		CreatedAt:   now,
	}
	if dist, ok := s.distanceFromFence(ctx, org, p.Location); ok {
		req.DistanceFromGeofenceMeters = &dist
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logAudit(ctx, org.ID, p.UserID, "checkin_request.submit", req.ID, string(reqType))
	return req, nil
}

// ReviewParams are the inputs to Review.
type ReviewParams struct {
	RequestID    string
	ReviewerID   string
	Approve      bool
	DenialReason string
}

// Review resolves a pending request. Approval applies the shift effect in the
// same transaction as the status change; a failed effect leaves the request
// pending. Denial requires a reason. A request past its window is moved to
// auto_expired and reported as expired.
func (s *Service) Review(ctx context.Context, p ReviewParams) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != domain.StatusPending {
		return nil, ErrAlreadyReviewed
	}

	now := s.nowF()
	if req.Expired(now) {
		s.expireOne(ctx, req)
		return nil, ErrRequestExpired
	}

	if !p.Approve {
		if p.DenialReason == "" {
			return nil, ErrMissingDenialReason
		}
		req.Status = domain.StatusDenied
		req.ReviewedBy = p.ReviewerID
		req.ReviewedAt = &now
		req.DenialReason = p.DenialReason
		err := s.tx.Run(ctx, func(requests RequestWriter, _ ShiftWriter) error {
			ok, err := requests.UpdateReview(ctx, req)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAlreadyReviewed
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.logAudit(ctx, req.OrgID, p.ReviewerID, "checkin_request.deny", req.ID, p.DenialReason)
		return req, nil
	}

	org, err := s.orgs.GetByID(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrganizationUnknown
	}

	req.Status = domain.StatusApproved
	req.ReviewedBy = p.ReviewerID
	req.ReviewedAt = &now
	err = s.tx.Run(ctx, func(requests RequestWriter, shifts ShiftWriter) error {
		ok, err := requests.UpdateReview(ctx, req)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyReviewed
		}
		return s.applyShiftEffect(ctx, shifts, org, req)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, req.OrgID, p.ReviewerID, "checkin_request.approve", req.ID, string(req.RequestType))
	return req, nil
}

// applyShiftEffect performs the approved clock event. Approved requests
// bypass geofence policy: the manager's sign-off stands in for range, so the
// event is tagged out_of_range for the record.
func (s *Service) applyShiftEffect(ctx context.Context, shifts ShiftWriter, org *orgdomain.Organization, req *domain.Request) error {
	switch req.RequestType {
	case domain.TypeClockIn:
		shift := shiftservice.BuildOpenShift(org, req.UserID, req.RequestedAt, req.Location,
			"", shiftdomain.LocationOutOfRange, false)
		if err := shifts.Create(ctx, shift); err != nil {
			if errors.Is(err, shiftrepo.ErrOpenShiftExists) {
				return ErrAlreadyOpen
			}
			return err
		}
		return nil
	case domain.TypeClockOut:
		shift, err := s.resolveOpenShift(ctx, shifts, req)
		if err != nil {
			return err
		}
		if _, err := shiftservice.CloseShift(shift, org, req.RequestedAt, req.Location,
			shiftdomain.LocationOutOfRange, 0); err != nil {
			return err
		}
		if err := shifts.Close(ctx, shift); err != nil {
			if errors.Is(err, shiftrepo.ErrShiftNotOpen) {
				return ErrNoOpenShift
			}
			return err
		}
		return nil
	default:
		return errors.New("unknown request type")
	}
}

func (s *Service) resolveOpenShift(ctx context.Context, shifts ShiftWriter, req *domain.Request) (*shiftdomain.Shift, error) {
	if req.ShiftID != "" {
		shift, err := shifts.GetByID(ctx, req.ShiftID)
		if err != nil {
			return nil, err
		}
		if shift == nil || shift.Status != shiftdomain.StatusOpen {
			return nil, ErrNoOpenShift
		}
		return shift, nil
	}
	shift, err := shifts.GetOpenByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNoOpenShift
	}
	return shift, nil
}

// ListPending returns the manager review queue for the org.
func (s *Service) ListPending(ctx context.Context, orgID string) ([]*domain.Request, error) {
	return s.requests.ListPendingByOrg(ctx, orgID)
}

// ListMine returns the user's recent requests.
func (s *Service) ListMine(ctx context.Context, userID string, limit int) ([]*domain.Request, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.requests.ListByUser(ctx, userID, limit)
}

// SweepExpired moves pending requests past their window to auto_expired.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.requests.ExpirePending(ctx)
}

// distanceFromFence evaluates the submitted location against the org's zones.
// ok is false when the org has nothing to measure against.
func (s *Service) distanceFromFence(ctx context.Context, org *orgdomain.Organization, sample geo.Sample) (float64, bool) {
	zones, err := s.fences.ListActiveZones(ctx, org.ID)
	if err != nil {
		return 0, false
	}
	if len(zones) == 0 && org.PrimaryPoint != nil {
		zones = []geo.Geofence{*org.PrimaryPoint}
	}
	ev, ok := geo.Evaluate(sample, zones)
	if !ok {
		return 0, false
	}
	return ev.DistanceFromEdgeMeters, true
}

// expireOne relabels a single expired request; best-effort, the sweep will
// catch anything this misses.
func (s *Service) expireOne(ctx context.Context, req *domain.Request) {
	expired := *req
	expired.Status = domain.StatusAutoExpired
	_ = s.tx.Run(ctx, func(requests RequestWriter, _ ShiftWriter) error {
		_, err := requests.UpdateReview(ctx, &expired)
		return err
	})
}

func (s *Service) logAudit(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, orgID, userID, action, resource, metadata)
}
