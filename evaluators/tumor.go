package evaluators

import (
	"fmt"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// hematologicCancerDoid is the root of blood cancers, which are not solid
const hematologicCancerDoid = "2531"

// TumorMapper maps rules over the primary tumor and its lesions
type TumorMapper struct{}

func (TumorMapper) Creators() map[rules.EligibilityRule]rules.FunctionCreator {
	return map[rules.EligibilityRule]rules.FunctionCreator{
		rules.HasSolidPrimaryTumor:                hasSolidPrimaryTumor,
		rules.HasPrimaryTumorBelongingToDoidTermX: hasPrimaryTumorBelongingToDoidTermX,
		rules.HasMeasurableDisease: static(func(record *patient.Record) evaluation.Evaluation {
			return flag(record.Tumor.HasMeasurableDisease,
				[2]string{"Patient has measurable disease", "Measurable disease"},
				[2]string{"Patient has no measurable disease", "No measurable disease"},
				[2]string{"Measurable disease status unknown", "Undetermined measurable disease"})
		}),
		rules.HasBrainMetastases: static(func(record *patient.Record) evaluation.Evaluation {
			return flag(record.Tumor.HasBrainLesions,
				[2]string{"Patient has brain metastases", "Brain metastases"},
				[2]string{"Patient has no known brain metastases", "No brain metastases"},
				[2]string{"Brain metastases status unknown", "Undetermined brain metastases"})
		}),
		rules.HasActiveBrainMetastases: static(hasActiveBrainMetastases),
		rules.HasLiverMetastases: static(func(record *patient.Record) evaluation.Evaluation {
			return flag(record.Tumor.HasLiverLesions,
				[2]string{"Patient has liver metastases", "Liver metastases"},
				[2]string{"Patient has no known liver metastases", "No liver metastases"},
				[2]string{"Liver metastases status unknown", "Undetermined liver metastases"})
		}),
	}
}

func hasSolidPrimaryTumor(_ rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		if len(record.Tumor.DOIDs) == 0 {
			return evaluation.Recoverable(evaluation.Undetermined,
				"Unable to determine whether tumor is solid: tumor type unknown", "Undetermined tumor type")
		}
		for _, doid := range record.Tumor.DOIDs {
			if res.Doid.IsDescendantOf(doid, hematologicCancerDoid) {
				return evaluation.Of(evaluation.Fail,
					fmt.Sprintf("Patient has non-solid primary tumor (%s)", res.Doid.Name(doid)), "Non-solid primary tumor")
			}
		}
		return evaluation.Of(evaluation.Pass, "Patient has solid primary tumor", "Solid primary tumor")
	}), nil
}

func hasPrimaryTumorBelongingToDoidTermX(fn rules.EligibilityFunction, res *rules.Resources) (rules.EvaluationFunction, error) {
	target, err := res.Inputs().OneDoidTerm(fn)
	if err != nil {
		return nil, err
	}
	name := res.Doid.Name(target)

	return rules.EvaluationFunc(func(record *patient.Record) evaluation.Evaluation {
		if len(record.Tumor.DOIDs) == 0 {
			return evaluation.Recoverable(evaluation.Undetermined,
				fmt.Sprintf("Unable to determine whether tumor belongs to %s: tumor type unknown", name),
				"Undetermined tumor type")
		}
		for _, doid := range record.Tumor.DOIDs {
			if res.Doid.IsDescendantOf(doid, target) {
				return evaluation.Of(evaluation.Pass,
					fmt.Sprintf("Patient has %s", name), "Tumor type "+name)
			}
		}
		return evaluation.Of(evaluation.Fail,
			fmt.Sprintf("Patient has no %s", name), "Tumor type not "+name)
	}), nil
}

func hasActiveBrainMetastases(record *patient.Record) evaluation.Evaluation {
	if hasBrain := record.Tumor.HasBrainLesions; hasBrain != nil && !*hasBrain {
		return evaluation.Of(evaluation.Fail, "Patient has no known brain metastases", "No active brain metastases")
	}
	return flag(record.Tumor.HasActiveBrainLesions,
		[2]string{"Patient has active brain metastases", "Active brain metastases"},
		[2]string{"Patient has no known active brain metastases", "No active brain metastases"},
		[2]string{"Activity of brain metastases unknown", "Undetermined active brain metastases"})
}
