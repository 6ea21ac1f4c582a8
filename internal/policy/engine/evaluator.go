package engine

import (
	"context"

	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
)

// Decision holds the result of clock-in policy evaluation.
type Decision struct {
	// RequireRequest is true when the clock-in must be routed through the
	// check-in request arbiter instead of creating a shift (strict mode and
	// no fence matched).
	RequireRequest bool
	// RecordWarning is true when the clock-in proceeds but is recorded
	// out_of_range for audit.
	RecordWarning bool
}

// Evaluator evaluates organization clock-in policy using OPA or other engines.
type Evaluator interface {
	// EvaluateClockIn evaluates the org's clock-in policy for the given
	// geofence evaluation. Clock-out is never policy-gated and does not go
	// through the evaluator.
	EvaluateClockIn(ctx context.Context, org *orgdomain.Organization, ev geo.Evaluation) (Decision, error)
}
