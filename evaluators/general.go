package evaluators

import (
	"fmt"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// GeneralMapper maps demographic and performance status rules
type GeneralMapper struct{}

func (GeneralMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.IsMale:                static(hasGender(patient.Male)),
		rules.IsFemale:              static(hasGender(patient.Female)),
		rules.IsAtLeastXYearsOld:    isAtLeastXYearsOld,
		rules.HasWHOStatusOfAtMostX: hasWHOStatusOfAtMostX,
		rules.IsAbleAndWillingToGiveAdequateInformedConsent: declined(rules.NotEvaluated),
		rules.HasLifeExpectancyOfAtLeastXMonths:             declined(rules.NotEvaluated),
		rules.MeetsSpecificCriteriaRegardingBrainMetastases: declined(rules.NotImplemented),
	}
}

func hasGender(gender patient.Gender) func(*patient.Record) evaluation.Evaluation {
	return func(record *patient.Record) evaluation.Evaluation {
		switch record.Demographics.Gender {
		case "":
			return evaluation.Recoverable(evaluation.Undetermined, "Gender of patient is unknown", "Unknown gender")
		case gender:
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient is %s", genderName(gender)), "Adequate gender")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient is not %s", genderName(gender)), "Inadequate gender")
	}
}

func genderName(gender patient.Gender) string {
	if gender == patient.Female {
		return "female"
	}
	return "male"
}

func isAtLeastXYearsOld(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	minAge, err := res.Inputs().OneInteger(fn)
	if err != nil {
		return nil, err
	}
	date := res.ReferenceDate.Date()

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		lowest, highest, ok := record.AgeRangeAt(date)
		switch {
		case !ok:
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Birth year unknown, cannot determine if patient is at least %d years old", minAge),
				"Undetermined age")
		case lowest >= minAge:
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient is at least %d years old", minAge), "Adequate age")
		case highest < minAge:
			return evaluation.Of(evaluation.Fail,
				fmt.Sprintf("Patient is younger than %d years old", minAge), "Inadequate age")
		}
		return evaluation.Recoverable(evaluation.Undetermined,
			fmt.Sprintf("Patient may be younger than %d years old (born in %d)", minAge, record.Demographics.BirthYear),
			"Undetermined age")
	}), nil
}

func hasWHOStatusOfAtMostX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	maxWHO, err := res.Inputs().OneInteger(fn)
	if err != nil {
		return nil, err
	}

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		who := record.ClinicalStatus.WHO
		switch {
		case who == nil:
			return evaluation.Recoverable(evaluation.Undetermined, "WHO status is unknown", "Unknown WHO status")
		case *who <= maxWHO:
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient WHO status %d is at most %d", *who, maxWHO), "Adequate WHO status")
		case *who == maxWHO+1:
			return evaluation.Recoverable(evaluation.Fail,
				fmt.Sprintf("Patient WHO status %d is one above the maximum of %d", *who, maxWHO), "Inadequate WHO status")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient WHO status %d exceeds %d", *who, maxWHO), "Inadequate WHO status")
	}), nil
}
