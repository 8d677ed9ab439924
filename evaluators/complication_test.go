package evaluators

import (
	"testing"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// TestHasAnyComplication verifies the three complication states
func TestHasAnyComplication(t *testing.T) {
	fn := rules.Leaf(rules.HasAnyComplication)

	runRuleCases(t, []ruleCase{
		{
			name:        "unknown complication status",
			fn:          fn,
			record:      patient.Record{ClinicalStatus: patient.ClinicalStatus{HasComplications: nil}},
			want:        evaluation.Undetermined,
			recoverable: true,
		},
		{
			name: "ascites",
			fn:   fn,
			record: patient.Record{
				ClinicalStatus: patient.ClinicalStatus{HasComplications: ptr(true)},
				Complications:  []patient.Complication{{Name: "Ascites", IcdCodes: []string{"ME04"}}},
			},
			want:    evaluation.Pass,
			message: "Ascites",
		},
		{
			name:   "no complications",
			fn:     fn,
			record: patient.Record{ClinicalStatus: patient.ClinicalStatus{HasComplications: ptr(false)}},
			want:   evaluation.Fail,
		},
	})
}

// TestHasComplicationWithIcdTitleX verifies matching on ICD codes
func TestHasComplicationWithIcdTitleX(t *testing.T) {
	fn := rules.Leaf(rules.HasComplicationWithIcdTitleX, "Chronic pain")

	runRuleCases(t, []ruleCase{
		{
			name: "child code matches",
			fn:   fn,
			record: patient.Record{
				ClinicalStatus: patient.ClinicalStatus{HasComplications: ptr(true)},
				Complications:  []patient.Complication{{Name: "Cancer pain", IcdCodes: []string{"MG30.10"}}},
			},
			want:    evaluation.Pass,
			message: "Cancer pain",
		},
		{
			name:        "unknown status",
			fn:          fn,
			want:        evaluation.Undetermined,
			recoverable: true,
		},
		{
			name: "other complication",
			fn:   fn,
			record: patient.Record{
				ClinicalStatus: patient.ClinicalStatus{HasComplications: ptr(true)},
				Complications:  []patient.Complication{{Name: "Ascites", IcdCodes: []string{"ME04"}}},
			},
			want: evaluation.Fail,
		},
	})
}

// TestHasUncontrolledTumorRelatedPain verifies that pain medication alone
// only warns
func TestHasUncontrolledTumorRelatedPain(t *testing.T) {
	fn := rules.Leaf(rules.HasUncontrolledTumorRelatedPain)

	runRuleCases(t, []ruleCase{
		{
			name:   "pain complication",
			fn:     fn,
			record: patient.Record{Complications: []patient.Complication{{Name: "Bone pain"}}},
			want:   evaluation.Pass,
		},
		{
			name: "active opioids",
			fn:   fn,
			record: patient.Record{Medications: []patient.Medication{
				{Name: "Oxycodone", Categories: []string{"Opioids"}, StartDate: date("2024-01-01")},
			}},
			want:    evaluation.Warn,
			message: "Oxycodone",
		},
		{
			name: "stopped opioids",
			fn:   fn,
			record: patient.Record{Medications: []patient.Medication{
				{Name: "Oxycodone", Categories: []string{"Opioids"}, StartDate: date("2024-01-01"), StopDate: date("2024-02-01")},
			}},
			want: evaluation.Fail,
		},
	})
}

// TestHasHistoryOfCondition verifies DOID and ICD matching of prior
// conditions
func TestHasHistoryOfCondition(t *testing.T) {
	record := patient.Record{PriorConditions: []patient.Condition{
		{Name: "Myocardial infarction", DOIDs: []string{"5844"}, IcdCodes: []string{"BA41"}},
	}}

	runRuleCases(t, []ruleCase{
		{name: "descendant doid", fn: rules.Leaf(rules.HasHistoryOfConditionWithDoidX, "114"), record: record, want: evaluation.Pass, message: "heart disease"},
		{name: "unrelated doid", fn: rules.Leaf(rules.HasHistoryOfConditionWithDoidX, "9351"), record: record, want: evaluation.Fail},
		{name: "icd title", fn: rules.Leaf(rules.HasHistoryOfConditionWithIcdTitleX, "Acute myocardial infarction"), record: record, want: evaluation.Pass},
		{name: "no history", fn: rules.Leaf(rules.HasHistoryOfConditionWithIcdTitleX, "Heart failure"), record: record, want: evaluation.Fail},
	})
}
