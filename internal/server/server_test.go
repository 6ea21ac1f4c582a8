package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	checkindomain "shiftledger/internal/checkin/domain"
	checkinhandler "shiftledger/internal/checkin/handler"
	checkinservice "shiftledger/internal/checkin/service"
	fencedomain "shiftledger/internal/geofence/domain"
	fencehandler "shiftledger/internal/geofence/handler"
	healthhandler "shiftledger/internal/health/handler"
	orgdomain "shiftledger/internal/organization/domain"
	orghandler "shiftledger/internal/organization/handler"
	"shiftledger/internal/security"
	shiftdomain "shiftledger/internal/shift/domain"
	shifthandler "shiftledger/internal/shift/handler"
	shiftservice "shiftledger/internal/shift/service"
)

type fakeShiftService struct {
	clockInErr  error
	clockOutErr error
	open        *shiftdomain.Shift
}

func (f *fakeShiftService) ClockIn(ctx context.Context, p shiftservice.ClockInParams) (*shiftservice.ClockInResult, error) {
	if f.clockInErr != nil {
		return nil, f.clockInErr
	}
	return &shiftservice.ClockInResult{
		ShiftID:        "shift-1",
		Status:         shiftdomain.StatusOpen,
		LocationStatus: shiftdomain.LocationInRange,
	}, nil
}

func (f *fakeShiftService) ClockOut(ctx context.Context, p shiftservice.ClockOutParams) (*shiftservice.ClockOutResult, error) {
	if f.clockOutErr != nil {
		return nil, f.clockOutErr
	}
	return &shiftservice.ClockOutResult{
		ShiftID:         "shift-1",
		DurationMinutes: 450,
		NetMinutes:      450,
		BreakMinutes:    30,
		LocationStatus:  shiftdomain.LocationInRange,
	}, nil
}

func (f *fakeShiftService) GetCurrentOpenShift(ctx context.Context, userID string) (*shiftdomain.Shift, error) {
	return f.open, nil
}

type fakeCheckinService struct {
	pending []*checkindomain.Request
}

func (f *fakeCheckinService) Submit(ctx context.Context, p checkinservice.SubmitParams) (*checkindomain.Request, error) {
	now := time.Now().UTC()
	return &checkindomain.Request{
		ID:          "req-1",
		OrgID:       p.OrgID,
		UserID:      p.UserID,
		RequestType: checkindomain.TypeClockIn,
		Status:      checkindomain.StatusPending,
		Reason:      p.Reason,
		RequestedAt: now,
		ExpiresAt:   now.Add(24 * time.Hour),
		CreatedAt:   now,
	}, nil
}

func (f *fakeCheckinService) Review(ctx context.Context, p checkinservice.ReviewParams) (*checkindomain.Request, error) {
	now := time.Now().UTC()
	return &checkindomain.Request{
		ID:          p.RequestID,
		Status:      checkindomain.StatusApproved,
		RequestType: checkindomain.TypeClockIn,
		ReviewedBy:  p.ReviewerID,
		ReviewedAt:  &now,
		RequestedAt: now,
		ExpiresAt:   now,
		CreatedAt:   now,
	}, nil
}

func (f *fakeCheckinService) ListPending(ctx context.Context, orgID string) ([]*checkindomain.Request, error) {
	return f.pending, nil
}

func (f *fakeCheckinService) ListMine(ctx context.Context, userID string, limit int) ([]*checkindomain.Request, error) {
	return nil, nil
}

type fakeOrgRepo struct {
	org *orgdomain.Organization
}

func (f *fakeOrgRepo) GetByID(ctx context.Context, id string) (*orgdomain.Organization, error) {
	if f.org != nil && f.org.ID == id {
		copied := *f.org
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeOrgRepo) Update(ctx context.Context, o *orgdomain.Organization) error {
	f.org = o
	return nil
}

type fakeFenceRepo struct {
	fences []*fencedomain.Geofence
}

func (f *fakeFenceRepo) GetByID(ctx context.Context, id string) (*fencedomain.Geofence, error) {
	for _, fence := range f.fences {
		if fence.ID == id {
			return fence, nil
		}
	}
	return nil, nil
}

func (f *fakeFenceRepo) ListActiveByOrg(ctx context.Context, orgID string) ([]*fencedomain.Geofence, error) {
	return f.fences, nil
}

func (f *fakeFenceRepo) Create(ctx context.Context, g *fencedomain.Geofence) error {
	f.fences = append(f.fences, g)
	return nil
}

func (f *fakeFenceRepo) SetActive(ctx context.Context, id string, active bool) error {
	for _, fence := range f.fences {
		if fence.ID == id {
			fence.Active = active
		}
	}
	return nil
}

func newTestRouter(t *testing.T, shifts *fakeShiftService, checkin *fakeCheckinService) (http.Handler, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	return NewRouter(Deps{
		Tokens:  tokens,
		Shifts:  shifthandler.NewHandler(shifts, nil),
		Checkin: checkinhandler.NewHandler(checkin, nil),
		Orgs:    orghandler.NewHandler(&fakeOrgRepo{org: &orgdomain.Organization{ID: "org-1", Name: "Acme Staffing"}}),
		Fences:  fencehandler.NewHandler(&fakeFenceRepo{}),
		Health:  healthhandler.NewHandler(nil, nil),
	}), tokens
}

func bearerFor(t *testing.T, tokens *security.TokenProvider, userID, orgID, role string) string {
	t.Helper()
	token, _, _, err := tokens.IssueAccess(userID, orgID, role)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	return "Bearer " + token
}

func clockBody(t *testing.T) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"latitude":        40.712800,
		"longitude":       -74.006100,
		"accuracy_meters": 10.0,
		"captured_at":     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func TestRouter_ClockInHappyPath(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/shifts/clock-in", clockBody(t))
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ShiftID        string `json:"shift_id"`
		Status         string `json:"status"`
		LocationStatus string `json:"location_status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ShiftID != "shift-1" || body.Status != "open" || body.LocationStatus != "in_range" {
		t.Errorf("body = %+v", body)
	}
}

func TestRouter_ClockInRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/shifts/clock-in", clockBody(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_ClockInAlreadyOpen(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{clockInErr: shiftservice.ErrAlreadyOpen}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/shifts/clock-in", clockBody(t))
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRouter_ClockInOutOfRange(t *testing.T) {
	svc := &fakeShiftService{clockInErr: &shiftservice.OutOfRangeError{RequiresRequest: true}}
	router, tokens := newTestRouter(t, svc, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/shifts/clock-in", clockBody(t))
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "out_of_range" {
		t.Errorf("code = %q, want out_of_range", body.Error.Code)
	}
	if body.Error.Details["requires_request"] != true {
		t.Errorf("details = %v, want requires_request true", body.Error.Details)
	}
}

func TestRouter_CurrentShiftNotFound(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{open: nil}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/shifts/current", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_ListPendingManagerOnly(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/checkin-requests/", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("employee: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/checkin-requests/", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, "mgr-1", "org-1", security.RoleManager))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("manager: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ReviewManagerOnly(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	body := bytes.NewReader([]byte(`{"approve": true}`))
	req := httptest.NewRequest(http.MethodPost, "/v1/checkin-requests/req-1/review", body)
	req.Header.Set("Authorization", bearerFor(t, tokens, "mgr-1", "org-1", security.RoleManager))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		ReviewedBy string `json:"reviewed_by"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "req-1" || resp.Status != "approved" || resp.ReviewedBy != "mgr-1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_OrganizationSettings(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/organization/", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	update := bytes.NewReader([]byte(`{"strict_mode": true}`))
	req = httptest.NewRequest(http.MethodPut, "/v1/organization/", update)
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("employee update: status = %d, want 403", rec.Code)
	}

	update = bytes.NewReader([]byte(`{"strict_mode": true}`))
	req = httptest.NewRequest(http.MethodPut, "/v1/organization/", update)
	req.Header.Set("Authorization", bearerFor(t, tokens, "mgr-1", "org-1", security.RoleManager))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager update: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var org struct {
		StrictMode bool `json:"strict_mode"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&org); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !org.StrictMode {
		t.Error("strict_mode not updated")
	}
}

func TestRouter_GeofenceManagement(t *testing.T) {
	router, tokens := newTestRouter(t, &fakeShiftService{}, &fakeCheckinService{})

	create := bytes.NewReader([]byte(`{"name": "Main Site", "latitude": 40.712800, "longitude": -74.006100, "radius_meters": 150}`))
	req := httptest.NewRequest(http.MethodPost, "/v1/geofences/", create)
	req.Header.Set("Authorization", bearerFor(t, tokens, "mgr-1", "org-1", security.RoleManager))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var fence struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fence); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodPatch, "/v1/geofences/"+fence.ID+"/active", bytes.NewReader([]byte(`{"active": false}`)))
	req.Header.Set("Authorization", bearerFor(t, tokens, "mgr-1", "org-1", security.RoleManager))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/geofences/", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, "user-1", "org-1", security.RoleEmployee))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("employee list: status = %d, want 403", rec.Code)
	}
}
