package evaluators

import (
	"fmt"
	"time"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

const week = 7 * 24 * time.Hour

// MedicationMapper maps rules over current and recent medication
type MedicationMapper struct{}

func (MedicationMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.CurrentlyGetsMedicationOfCategoryX:              currentlyGetsMedicationOfCategoryX,
		rules.HasNotReceivedMedicationOfCategoryYWithinXWeeks: hasNotReceivedMedicationOfCategoryYWithinXWeeks,
	}
}

func currentlyGetsMedicationOfCategoryX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	category, err := res.Inputs().OneMedicationCategory(fn)
	if err != nil {
		return nil, err
	}
	date := res.ReferenceDate.Date()

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var active []string
		for _, m := range record.Medications {
			if m.HasCategory(category) && m.IsActiveAt(date) {
				active = append(active, m.Name)
			}
		}
		if len(active) > 0 {
			names := concat(active)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient currently gets medication of category %s (%s)", category, names),
				category+" medication use")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient does not get medication of category %s", category), "No "+category+" medication use")
	}), nil
}

func hasNotReceivedMedicationOfCategoryYWithinXWeeks(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	weeks, name, err := res.Inputs().OneIntegerOneString(fn)
	if err != nil {
		return nil, err
	}
	category, ok := res.MedicationCategories.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown medication category %q", rules.ErrInvalidParameter, name)
	}
	date := res.ReferenceDate.Date()
	windowStart := date.Add(-time.Duration(weeks) * week)

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var recent []string
		for _, m := range record.Medications {
			if m.HasCategory(category) && takenWithin(m, windowStart, date) {
				recent = append(recent, m.Name)
			}
		}
		if len(recent) > 0 {
			names := concat(recent)
			return evaluation.Of(evaluation.Fail,
				fmt.Sprintf("Patient has received medication of category %s (%s) within the last %d weeks", category, names, weeks),
				"Recent "+category+" medication use")
		}
		return evaluation.Of(evaluation.Pass,
			fmt.Sprintf("Patient has not received medication of category %s within the last %d weeks", category, weeks),
			"No recent "+category+" medication use")
	}), nil
}

// takenWithin reports whether medication m overlaps [from, to]
func takenWithin(m patient.Medication, from, to time.Time) bool {
	if m.StartDate != nil && m.StartDate.After(to) {
		return false
	}
	return m.StopDate == nil || !m.StopDate.Before(from)
}
