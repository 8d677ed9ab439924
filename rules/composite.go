package rules

import (
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
)

// AndFunction passes when every child passes
type AndFunction struct {
	Children []EvaluationFunction
}

// Evaluate evaluates children in order and combines them with evaluation.And
func (f AndFunction) Evaluate(record *patient.Record) evaluation.Evaluation {
	return evaluation.And(evaluateAll(f.Children, record)...)
}

// OrFunction passes when any child passes
type OrFunction struct {
	Children []EvaluationFunction
}

// Evaluate evaluates children in order and combines them with evaluation.Or
func (f OrFunction) Evaluate(record *patient.Record) evaluation.Evaluation {
	return evaluation.Or(evaluateAll(f.Children, record)...)
}

// NotFunction inverts its child
type NotFunction struct {
	Child EvaluationFunction
}

func (f NotFunction) Evaluate(record *patient.Record) evaluation.Evaluation {
	return evaluation.Not(f.Child.Evaluate(record))
}

// WarnIfFunction downgrades a passing child to a warning and never fails
type WarnIfFunction struct {
	Child EvaluationFunction
}

func (f WarnIfFunction) Evaluate(record *patient.Record) evaluation.Evaluation {
	return evaluation.WarnIf(f.Child.Evaluate(record))
}

func evaluateAll(children []EvaluationFunction, record *patient.Record) []evaluation.Evaluation {
	out := make([]evaluation.Evaluation, len(children))
	for i, child := range children {
		out[i] = child.Evaluate(record)
	}
	return out
}

// newComposite wraps built children in the combinator for rule
func newComposite(rule EligibilityRule, children []EvaluationFunction) EvaluationFunction {
	switch rule {
	case And:
		return AndFunction{Children: children}
	case Or:
		return OrFunction{Children: children}
	case Not:
		return NotFunction{Child: children[0]}
	case WarnIf:
		return WarnIfFunction{Child: children[0]}
	}
	return nil
}
