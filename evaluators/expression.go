package evaluators

import (
	"fmt"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// ExpressionMapper maps free-form clinical expressions written in CEL
type ExpressionMapper struct{}

func (ExpressionMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.MatchesClinicalExpressionX: matchesClinicalExpressionX,
	}
}

func matchesClinicalExpressionX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	prog, err := res.Inputs().OneExpression(fn)
	if err != nil {
		return nil, err
	}
	expression, _ := res.Inputs().OneString(fn)
	date := res.ReferenceDate.Date()

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		facts, err := rules.Activation(record, date)
		if err != nil {
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Clinical expression %s could not be evaluated: %v", expression, err),
				"Undetermined clinical expression")
		}

		// Missing fields surface as evaluation errors
		out, _, err := prog.Eval(facts)
		if err != nil {
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Clinical expression %s could not be evaluated: %v", expression, err),
				"Undetermined clinical expression")
		}

		matched, ok := out.Value().(bool)
		switch {
		case !ok:
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Clinical expression %s did not yield a boolean", expression),
				"Undetermined clinical expression")
		case matched:
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient matches clinical expression %s", expression), "Clinical expression met")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient does not match clinical expression %s", expression), "Clinical expression not met")
	}), nil
}
