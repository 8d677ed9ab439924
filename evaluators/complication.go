package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

const (
	painIcdCode        = "MG30"
	opioidCategoryName = "Opioids"
)

// ComplicationMapper maps cancer-related complication rules
type ComplicationMapper struct{}

func (ComplicationMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasAnyComplication:              static(hasAnyComplication),
		rules.HasComplicationWithIcdTitleX:    hasComplicationWithIcdTitleX,
		rules.HasUncontrolledTumorRelatedPain: hasUncontrolledTumorRelatedPain,
	}
}

func complicationNames(complications []patient.Complication) []string {
	names := make([]string, 0, len(complications))
	for _, c := range complications {
		names = append(names, c.Name)
	}
	return names
}

func hasAnyComplication(record *patient.Record) evaluation.Evaluation {
	has := record.ClinicalStatus.HasComplications
	switch {
	case has == nil:
		return evaluation.Recoverable(evaluation.Undetermined,
			"Unknown whether patient has cancer-related complications", "Undetermined complication status")
	case !*has:
		return evaluation.Of(evaluation.Fail,
			"Patient has no known cancer-related complications", "No complications")
	}

	names := concat(complicationNames(record.Complications))
	if names == "" {
		return evaluation.Of(evaluation.Pass,
			"Patient has at least one cancer-related complication", "Present complication(s)")
	}
	return evaluation.Of(evaluation.Pass,
		"Patient has at least one cancer-related complication: "+names, "Present complication(s): "+names)
}

func hasComplicationWithIcdTitleX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	target, err := res.Inputs().OneIcdTitle(fn)
	if err != nil {
		return nil, err
	}

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var matches []string
		for _, c := range record.Complications {
			for _, code := range c.IcdCodes {
				if rules.IsCodeOrChild(code, target.Code) {
					matches = append(matches, c.Name)
					break
				}
			}
		}
		if len(matches) > 0 {
			names := concat(matches)
			return evaluation.Of(evaluation.Pass,
				fmt.Sprintf("Patient has complication(s) %s belonging to %s", names, target.Title),
				"Present "+names)
		}
		if record.ClinicalStatus.HasComplications == nil {
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Unknown whether patient has complication %s", target.Title),
				"Undetermined complication status")
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has no complication belonging to %s", target.Title), "No "+target.Title)
	}), nil
}

func hasUncontrolledTumorRelatedPain(_ rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	date := res.ReferenceDate.Date()
	opioids, ok := res.MedicationCategories.Resolve(opioidCategoryName)
	if !ok {
		opioids = opioidCategoryName
	}

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		var painComplications []string
		for _, c := range record.Complications {
			if isPainComplication(c) {
				painComplications = append(painComplications, c.Name)
			}
		}
		if len(painComplications) > 0 {
			names := concat(painComplications)
			return evaluation.Of(evaluation.Pass,
				"Patient has complication related to pain: "+names, "Present "+names)
		}

		var painMedication []string
		for _, m := range record.Medications {
			if m.IsActiveAt(date) && m.HasCategory(opioids) {
				painMedication = append(painMedication, m.Name)
			}
		}
		if len(painMedication) > 0 {
			names := concat(painMedication)
			return evaluation.Of(evaluation.Warn,
				fmt.Sprintf("Patient receives pain medication (%s), potentially indicating uncontrolled tumor related pain", names),
				"Potential uncontrolled tumor related pain")
		}

		return evaluation.Of(evaluation.Fail,
			"Patient does not have uncontrolled tumor related pain", "No uncontrolled tumor related pain")
	}), nil
}

func isPainComplication(c patient.Complication) bool {
	for _, code := range c.IcdCodes {
		if rules.IsCodeOrChild(code, painIcdCode) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(c.Name), "pain")
}
