package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/trialmatch/patient"
)

// expressionCostLimit bounds the evaluation cost of one clinical expression
const expressionCostLimit = 1000000

// ExpressionCompiler compiles clinical expressions written in CEL against
// the patient record. It holds no state beyond the environment and is safe
// for concurrent use. Programs are kept by the functions built from them.
type ExpressionCompiler struct {
	env *cel.Env
}

// NewExpressionCompiler creates a compiler with the patient record bound as
// the dynamic variable "patient" and the reference date as "referenceDate".
func NewExpressionCompiler() (*ExpressionCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("patient", cel.DynType),
		cel.Variable("referenceDate", cel.TimestampType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &ExpressionCompiler{env: env}, nil
}

// Compile type-checks expression and returns a cost-limited program.
// Expressions must yield a boolean.
func (c *ExpressionCompiler) Compile(expression string) (cel.Program, error) {
	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must be boolean, got %s", out)
	}

	prog, err := c.env.Program(ast, cel.CostLimit(expressionCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Activation renders record the way expressions see it: the JSON form of
// the record as nested maps.
func Activation(record *patient.Record, referenceDate time.Time) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patient record: %w", err)
	}
	var facts map[string]any
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patient record: %w", err)
	}
	return map[string]any{
		"patient":       facts,
		"referenceDate": referenceDate,
	}, nil
}
