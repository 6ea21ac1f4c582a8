package engine

import (
	"context"
	"testing"

	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
)

func TestHealthCheck(t *testing.T) {
	e := NewOPAEvaluator()
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestEvaluateClockIn(t *testing.T) {
	e := NewOPAEvaluator()
	tests := []struct {
		name               string
		strictMode         bool
		withinRange        bool
		wantRequireRequest bool
		wantRecordWarning  bool
	}{
		{"in range lenient", false, true, false, false},
		{"in range strict", true, true, false, false},
		{"out of range lenient records warning", false, false, false, true},
		{"out of range strict requires request", true, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := &orgdomain.Organization{ID: "org-1", StrictMode: tt.strictMode}
			ev := geo.Evaluation{
				Verdict:     geo.VerdictInRange,
				WithinRange: tt.withinRange,
				Definitive:  true,
			}
			if !tt.withinRange {
				ev.Verdict = geo.VerdictOutOfRange
				ev.DistanceMeters = 1000
			}
			d, err := e.EvaluateClockIn(context.Background(), org, ev)
			if err != nil {
				t.Fatalf("EvaluateClockIn: %v", err)
			}
			if d.RequireRequest != tt.wantRequireRequest {
				t.Errorf("RequireRequest = %v, want %v", d.RequireRequest, tt.wantRequireRequest)
			}
			if d.RecordWarning != tt.wantRecordWarning {
				t.Errorf("RecordWarning = %v, want %v", d.RecordWarning, tt.wantRecordWarning)
			}
		})
	}
}
