package evaluators

import (
	"fmt"
	"time"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// SurgeryMapper maps rules over recent surgeries
type SurgeryMapper struct{}

func (SurgeryMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasHadSurgeryWithinLastXWeeks: hasHadSurgeryWithinLastXWeeks,
		rules.HasHadSurgeryAfterDateX:       hasHadSurgeryAfterDateX,
	}
}

func hasHadSurgeryWithinLastXWeeks(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	weeks, err := res.Inputs().OneInteger(fn)
	if err != nil {
		return nil, err
	}
	since := res.ReferenceDate.Date().Add(-time.Duration(weeks) * week)
	return surgerySince(since, fmt.Sprintf("in the last %d weeks", weeks)), nil
}

func hasHadSurgeryAfterDateX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	date, err := res.Inputs().OneDate(fn)
	if err != nil {
		return nil, err
	}
	return surgerySince(date, "after "+date.Format(rules.DateLayout)), nil
}

func surgerySince(since time.Time, period string) rules.EvaluationFunction {
	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var recent, undated []string
		for _, s := range record.Surgeries {
			switch {
			case s.EndDate == nil:
				undated = append(undated, s.Name)
			case s.EndDate.After(since):
				recent = append(recent, s.Name)
			}
		}
		if len(recent) > 0 {
			names := concat(recent)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has had surgery %s (%s)", period, names), "Recent surgery")
		}
		if len(undated) > 0 {
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Unable to determine whether surgery (%s) took place %s", concat(undated), period),
				"Undetermined recent surgery")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has not had surgery %s", period), "No recent surgery")
	})
}
