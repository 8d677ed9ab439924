package rules

import (
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
)

// EvaluationFunction evaluates one built eligibility function against a
// patient record. Implementations are stateless and safe for concurrent use.
type EvaluationFunction interface {
	Evaluate(record *patient.Record) evaluation.Evaluation
}

// EvaluationFunc adapts an ordinary function to EvaluationFunction
type EvaluationFunc func(record *patient.Record) evaluation.Evaluation

// Evaluate calls f(record)
func (f EvaluationFunc) Evaluate(record *patient.Record) evaluation.Evaluation {
	return f(record)
}

// Constant returns a function that always yields e, for rules that decline
// to evaluate.
func Constant(e evaluation.Evaluation) EvaluationFunction {
	return EvaluationFunc(func(*patient.Record) evaluation.Evaluation { return e })
}

// NotEvaluated is used for rules that cannot be checked from curated data
func NotEvaluated() EvaluationFunction {
	return Constant(evaluation.Of(evaluation.NotEvaluated, "", ""))
}

// NotImplemented is used for rules without an evaluator yet
func NotImplemented() EvaluationFunction {
	return Constant(evaluation.Of(evaluation.NotImplemented, "", ""))
}
