package evaluators

import (
	"fmt"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// ConditionMapper maps rules over the patient's prior conditions
type ConditionMapper struct{}

func (ConditionMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasHistoryOfConditionWithDoidX:     hasHistoryOfConditionWithDoidX,
		rules.HasHistoryOfConditionWithIcdTitleX: hasHistoryOfConditionWithIcdTitleX,
	}
}

func hasHistoryOfConditionWithDoidX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	doid, err := res.Inputs().OneDoidTerm(fn)
	if err != nil {
		return nil, err
	}
	name := res.Doid.Name(doid)

	return historyOf(name, func(c patient.Condition) bool {
		for _, d := range c.DOIDs {
			if res.Doid.IsDescendantOf(d, doid) {
				return true
			}
		}
		return false
	}), nil
}

func hasHistoryOfConditionWithIcdTitleX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	target, err := res.Inputs().OneIcdTitle(fn)
	if err != nil {
		return nil, err
	}

	return historyOf(target.Title, func(c patient.Condition) bool {
		for _, code := range c.IcdCodes {
			if rules.IsCodeOrChild(code, target.Code) {
				return true
			}
		}
		return false
	}), nil
}

func historyOf(name string, matches func(patient.Condition) bool) rules.EvaluationFunction {
	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var found []string
		for _, c := range record.PriorConditions {
			if matches(c) {
				found = append(found, c.Name)
			}
		}
		if len(found) > 0 {
			names := concat(found)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has history of %s belonging to %s", names, name), "History of "+name)
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has no history of %s", name), "No history of "+name)
	})
}
