package domain

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	valid := Shift{
		OrgID:     "org-1",
		UserID:    "user-1",
		Status:    StatusOpen,
		ClockInAt: now,
		ShiftDate: now,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid shift: %v", err)
	}

	closedNoOut := valid
	closedNoOut.Status = StatusClosed
	if err := closedNoOut.Validate(); err == nil {
		t.Error("closed shift without clock_out_at passed validation")
	}

	noUser := valid
	noUser.UserID = ""
	if err := noUser.Validate(); err == nil {
		t.Error("shift without user_id passed validation")
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusClosed, true},
		{StatusOpen, StatusStale, true},
		{StatusOpen, StatusRevised, false},
		{StatusStale, StatusPendingRevision, true},
		{StatusStale, StatusClosed, false},
		{StatusPendingRevision, StatusRevised, true},
		{StatusClosed, StatusOpen, false},
		{StatusRevised, StatusOpen, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusClosed, StatusRevised} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
	for _, s := range []Status{StatusOpen, StatusStale, StatusPendingRevision} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
}
