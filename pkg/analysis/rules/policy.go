// Package rules evaluates the configurable risk policy that flags entries of
// the Critical Element Risk Index for attention.
package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

// RiskPolicy is a compiled CEL expression over one risk index entry. The
// expression sees the variables worst, best (double), complexity, hits,
// mitigated, potential (int), uml_type and name (string) and must yield a
// bool.
type RiskPolicy struct {
	expr    string
	program cel.Program
}

// NewRiskPolicy compiles expr. An empty expression yields a policy that
// flags nothing.
func NewRiskPolicy(expr string) (*RiskPolicy, error) {
	p := &RiskPolicy{expr: expr}
	if expr == "" {
		return p, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("worst", cel.DoubleType),
		cel.Variable("best", cel.DoubleType),
		cel.Variable("complexity", cel.IntType),
		cel.Variable("hits", cel.IntType),
		cel.Variable("mitigated", cel.IntType),
		cel.Variable("potential", cel.IntType),
		cel.Variable("uml_type", cel.StringType),
		cel.Variable("name", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile risk policy %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("risk policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	p.program, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build risk policy program: %w", err)
	}
	return p, nil
}

// String returns the policy source.
func (p *RiskPolicy) String() string {
	return p.expr
}

// Evaluate reports whether entry is flagged by the policy.
func (p *RiskPolicy) Evaluate(entry models.RiskEntry) (bool, error) {
	if p == nil || p.program == nil {
		return false, nil
	}

	out, _, err := p.program.Eval(map[string]interface{}{
		"worst":      entry.Worst,
		"best":       entry.Best,
		"complexity": int64(entry.Stats.Complexity),
		"hits":       int64(entry.Stats.Hits),
		"mitigated":  int64(entry.Stats.Mitigated),
		"potential":  int64(entry.Stats.Potential),
		"uml_type":   entry.UMLType,
		"name":       entry.Name,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate risk policy for %s: %w", entry.ElementID, err)
	}
	flagged, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("risk policy returned %T, want bool", out.Value())
	}
	return flagged, nil
}

// Apply sets Flagged on every entry of index the policy matches.
func (p *RiskPolicy) Apply(index []models.RiskEntry) error {
	for i := range index {
		flagged, err := p.Evaluate(index[i])
		if err != nil {
			return err
		}
		index[i].Flagged = flagged
	}
	return nil
}
