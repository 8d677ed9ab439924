package evaluators

import (
	"testing"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

func tumor(details patient.TumorDetails) patient.Record {
	return patient.Record{Tumor: details}
}

// TestTumorRules verifies tumor type and lesion rules
func TestTumorRules(t *testing.T) {
	lungAdeno := tumor(patient.TumorDetails{DOIDs: []string{"3910"}})
	leukemia := tumor(patient.TumorDetails{DOIDs: []string{"1240"}})

	runRuleCases(t, []ruleCase{
		{name: "solid tumor", fn: rules.Leaf(rules.HasSolidPrimaryTumor), record: lungAdeno, want: evaluation.Pass},
		{name: "hematologic tumor", fn: rules.Leaf(rules.HasSolidPrimaryTumor), record: leukemia, want: evaluation.Fail, message: "leukemia"},
		{name: "unknown tumor", fn: rules.Leaf(rules.HasSolidPrimaryTumor), want: evaluation.Undetermined, recoverable: true},
		{name: "belongs to lung cancer", fn: rules.Leaf(rules.HasPrimaryTumorBelongingToDoidTermX, "1324"), record: lungAdeno, want: evaluation.Pass},
		{name: "not breast cancer", fn: rules.Leaf(rules.HasPrimaryTumorBelongingToDoidTermX, "1612"), record: lungAdeno, want: evaluation.Fail},
		{name: "measurable disease", fn: rules.Leaf(rules.HasMeasurableDisease), record: tumor(patient.TumorDetails{HasMeasurableDisease: ptr(true)}), want: evaluation.Pass},
		{name: "unknown measurable disease", fn: rules.Leaf(rules.HasMeasurableDisease), want: evaluation.Undetermined, recoverable: true},
		{name: "liver metastases absent", fn: rules.Leaf(rules.HasLiverMetastases), record: tumor(patient.TumorDetails{HasLiverLesions: ptr(false)}), want: evaluation.Fail},
		{name: "brain metastases", fn: rules.Leaf(rules.HasBrainMetastases), record: tumor(patient.TumorDetails{HasBrainLesions: ptr(true)}), want: evaluation.Pass},
	})
}

// TestHasActiveBrainMetastases verifies that absent brain lesions rule out
// active ones
func TestHasActiveBrainMetastases(t *testing.T) {
	fn := rules.Leaf(rules.HasActiveBrainMetastases)

	runRuleCases(t, []ruleCase{
		{name: "no brain lesions", fn: fn, record: tumor(patient.TumorDetails{HasBrainLesions: ptr(false)}), want: evaluation.Fail},
		{name: "activity unknown", fn: fn, record: tumor(patient.TumorDetails{HasBrainLesions: ptr(true)}), want: evaluation.Undetermined, recoverable: true},
		{name: "active", fn: fn, record: tumor(patient.TumorDetails{HasBrainLesions: ptr(true), HasActiveBrainLesions: ptr(true)}), want: evaluation.Pass},
		{name: "inactive", fn: fn, record: tumor(patient.TumorDetails{HasBrainLesions: ptr(true), HasActiveBrainLesions: ptr(false)}), want: evaluation.Fail},
	})
}
