package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"shiftledger/internal/geo"
	orgdomain "shiftledger/internal/organization/domain"
)

// Default Rego policy: strict mode routes unmatched clock-ins to the request
// arbiter; lenient mode records a warning and lets them through.
const defaultRegoPolicy = `package shiftledger.clock_in

default require_request = false
default record_warning = false

require_request if {
	input.org.strict_mode
	not input.evaluation.within_range
}

record_warning if {
	not input.org.strict_mode
	not input.evaluation.within_range
}
`

// OPAEvaluator evaluates clock-in policy using OPA Rego.
type OPAEvaluator struct{}

// NewOPAEvaluator returns an OPA-based clock-in policy evaluator.
func NewOPAEvaluator() *OPAEvaluator {
	return &OPAEvaluator{}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not touch the database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compileDefaultPolicy()
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	minimalInput := map[string]interface{}{
		"org": map[string]interface{}{
			"strict_mode": false,
		},
		"evaluation": map[string]interface{}{
			"within_range":    true,
			"definitive":      true,
			"verdict":         string(geo.VerdictInRange),
			"distance_meters": 0.0,
		},
	}
	q := rego.New(
		rego.Query("data.shiftledger.clock_in.require_request"),
		rego.Compiler(compiler),
		rego.Input(minimalInput),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateClockIn evaluates clock-in policy for the org and geofence evaluation.
func (e *OPAEvaluator) EvaluateClockIn(ctx context.Context, org *orgdomain.Organization, ev geo.Evaluation) (Decision, error) {
	compiler, err := compileDefaultPolicy()
	if err != nil {
		return Decision{}, fmt.Errorf("compile policy: %w", err)
	}
	input := map[string]interface{}{
		"org": map[string]interface{}{
			"id":          org.ID,
			"strict_mode": org.StrictMode,
		},
		"evaluation": map[string]interface{}{
			"within_range":    ev.WithinRange,
			"definitive":      ev.Definitive,
			"verdict":         string(ev.Verdict),
			"distance_meters": ev.DistanceMeters,
			"geofence_id":     ev.GeofenceID,
		},
	}
	q := rego.New(
		rego.Query("data.shiftledger.clock_in"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy query returned no result")
	}
	result, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("policy result has unexpected type %T", rs[0].Expressions[0].Value)
	}
	var d Decision
	if v, ok := result["require_request"].(bool); ok {
		d.RequireRequest = v
	}
	if v, ok := result["record_warning"].(bool); ok {
		d.RecordWarning = v
	}
	return d, nil
}

func compileDefaultPolicy() (*ast.Compiler, error) {
	return ast.CompileModules(map[string]string{"clock_in.rego": defaultRegoPolicy})
}
