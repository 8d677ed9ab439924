package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// TreatmentMapper maps rules over prior oncological treatment
type TreatmentMapper struct{}

func (TreatmentMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasHadTreatmentWithAnyDrugX:              hasHadTreatmentWithAnyDrugX,
		rules.HasHadTreatmentWithNameX:                 hasHadTreatmentWithNameX,
		rules.HasHadAtMostXSystemicTreatmentLines:      hasHadAtMostXSystemicTreatmentLines,
		rules.HasHadAtLeastXSystemicTreatmentLines:     hasHadAtLeastXSystemicTreatmentLines,
		rules.HasHadSystemicTreatmentLinesBetweenXAndY: hasHadSystemicTreatmentLinesBetweenXAndY,
		rules.HasHadTreatmentCategoriesX:               hasHadTreatmentCategoriesX,
	}
}

func containsFold(values []string, value string) bool {
	for _, v := range values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func hasHadTreatmentWithAnyDrugX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	drugs, err := res.Inputs().ManyDrugs(fn)
	if err != nil {
		return nil, err
	}
	requested := concat(drugs)

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var found []string
		for _, entry := range record.TreatmentHistory {
			for _, drug := range drugs {
				if containsFold(entry.Drugs, drug) {
					found = append(found, drug)
				}
			}
		}
		if len(found) > 0 {
			names := concat(found)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has received treatment with %s", names), "Has received "+names)
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has not received treatment with any of %s", requested), "Has not received "+requested)
	}), nil
}

func hasHadTreatmentWithNameX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	name, err := res.Inputs().OneString(fn)
	if err != nil {
		return nil, err
	}

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		for _, entry := range record.TreatmentHistory {
			if strings.EqualFold(entry.Name, name) {
				return evaluation.Of(evaluation.Pass,
					fmt.Sprintf("Patient has received %s", entry.Name), "Has received "+entry.Name)
			}
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has not received %s", name), "Has not received "+name)
	}), nil
}

func systemicLines(accept func(lines int) bool, describe string) func(record *patient.Record) evaluation.Evaluation {
	return func(record *patient.Record) evaluation.Evaluation {
		lines := record.SystemicTreatmentLines()
		if accept(lines) {
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has had %d systemic treatment line(s), %s", lines, describe),
				"Adequate number of systemic lines")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has had %d systemic treatment line(s), not %s", lines, describe),
			"Inadequate number of systemic lines")
	}
}

func hasHadAtMostXSystemicTreatmentLines(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	maxLines, err := res.Inputs().OneInteger(fn)
	if err != nil {
		return nil, err
	}
	return rules.EvaluationFunc(systemicLines(func(lines int) bool { return lines <= maxLines },
		fmt.Sprintf("at most %d", maxLines))), nil
}

func hasHadAtLeastXSystemicTreatmentLines(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	minLines, err := res.Inputs().OneInteger(fn)
	if err != nil {
		return nil, err
	}
	return rules.EvaluationFunc(systemicLines(func(lines int) bool { return lines >= minLines },
		fmt.Sprintf("at least %d", minLines))), nil
}

func hasHadSystemicTreatmentLinesBetweenXAndY(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	minLines, maxLines, err := res.Inputs().TwoIntegers(fn)
	if err != nil {
		return nil, err
	}
	if minLines > maxLines {
		return nil, fmt.Errorf("%w: lower bound %d exceeds upper bound %d", rules.ErrInvalidParameter, minLines, maxLines)
	}
	return rules.EvaluationFunc(systemicLines(func(lines int) bool { return lines >= minLines && lines <= maxLines },
		fmt.Sprintf("between %d and %d", minLines, maxLines))), nil
}

func hasHadTreatmentCategoriesX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	categories, err := res.Inputs().ManyStrings(fn)
	if err != nil {
		return nil, err
	}
	requested := concat(categories)

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var found []string
		for _, entry := range record.TreatmentHistory {
			for _, c := range categories {
				if containsFold(entry.Categories, c) {
					found = append(found, c)
				}
			}
		}
		if len(found) > 0 {
			names := concat(found)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has received %s treatment", names), "Has received "+names)
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has not received any of %s treatment", requested), "Has not received "+requested)
	}), nil
}
