package evaluators

import (
	"errors"
	"testing"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

func medications(meds ...patient.Medication) patient.Record {
	return patient.Record{Medications: meds}
}

// TestMedicationRules verifies current and recent medication checks
func TestMedicationRules(t *testing.T) {
	current := rules.Leaf(rules.CurrentlyGetsMedicationOfCategoryX, "anticoagulants")
	recent := rules.Leaf(rules.HasNotReceivedMedicationOfCategoryYWithinXWeeks, "4", "Corticosteroids")

	runRuleCases(t, []ruleCase{
		{
			name:    "active anticoagulant",
			fn:      current,
			record:  medications(patient.Medication{Name: "Apixaban", Categories: []string{"Anticoagulants"}, StartDate: date("2024-01-01")}),
			want:    evaluation.Pass,
			message: "Apixaban",
		},
		{
			name:   "stopped anticoagulant",
			fn:     current,
			record: medications(patient.Medication{Name: "Apixaban", Categories: []string{"Anticoagulants"}, StartDate: date("2024-01-01"), StopDate: date("2024-03-01")}),
			want:   evaluation.Fail,
		},
		{
			name:   "not yet started",
			fn:     current,
			record: medications(patient.Medication{Name: "Apixaban", Categories: []string{"Anticoagulants"}, StartDate: date("2024-07-01")}),
			want:   evaluation.Fail,
		},
		{
			name:   "steroids within window",
			fn:     recent,
			record: medications(patient.Medication{Name: "Dexamethasone", Categories: []string{"Corticosteroids"}, StopDate: date("2024-05-20")}),
			want:   evaluation.Fail,
		},
		{
			name:   "steroids before window",
			fn:     recent,
			record: medications(patient.Medication{Name: "Dexamethasone", Categories: []string{"Corticosteroids"}, StopDate: date("2024-04-01")}),
			want:   evaluation.Pass,
		},
		{name: "no medication", fn: recent, want: evaluation.Pass},
	})
}

// TestMedicationCategoryMustBeKnown verifies that configuration errors
// surface when the function is built
func TestMedicationCategoryMustBeKnown(t *testing.T) {
	engine := newTestEngine(t)

	for _, fn := range []rules.EligibilityFunction{
		rules.Leaf(rules.CurrentlyGetsMedicationOfCategoryX, "Vitamins"),
		rules.Leaf(rules.HasNotReceivedMedicationOfCategoryYWithinXWeeks, "4", "Vitamins"),
	} {
		if _, err := engine.Build(fn); !errors.Is(err, rules.ErrInvalidParameter) {
			t.Errorf("Build(%s) error = %v, want ErrInvalidParameter", fn, err)
		}
	}
}

// TestTreatmentHistoryRules verifies drug, name and category matching
func TestTreatmentHistoryRules(t *testing.T) {
	record := patient.Record{TreatmentHistory: []patient.TreatmentEntry{
		{Name: "FOLFOX", Drugs: []string{"fluorouracil", "oxaliplatin"}, Categories: []string{"Chemotherapy"}, IsSystemic: true},
		{Name: "Pembrolizumab", Drugs: []string{"pembrolizumab"}, Categories: []string{"Immunotherapy"}, IsSystemic: true},
		{Name: "Radiotherapy", Categories: []string{"Radiotherapy"}},
	}}

	runRuleCases(t, []ruleCase{
		{name: "any drug", fn: rules.Leaf(rules.HasHadTreatmentWithAnyDrugX, "Pembrolizumab;Nivolumab"), record: record, want: evaluation.Pass, message: "Pembrolizumab"},
		{name: "no drug", fn: rules.Leaf(rules.HasHadTreatmentWithAnyDrugX, "Osimertinib"), record: record, want: evaluation.Fail},
		{name: "by name", fn: rules.Leaf(rules.HasHadTreatmentWithNameX, "folfox"), record: record, want: evaluation.Pass},
		{name: "categories", fn: rules.Leaf(rules.HasHadTreatmentCategoriesX, "Immunotherapy;Targeted therapy"), record: record, want: evaluation.Pass},
		{name: "missing categories", fn: rules.Leaf(rules.HasHadTreatmentCategoriesX, "Targeted therapy"), record: record, want: evaluation.Fail},
		{name: "at most 1 line", fn: rules.Leaf(rules.HasHadAtMostXSystemicTreatmentLines, "1"), record: record, want: evaluation.Fail, message: "2 systemic"},
		{name: "at least 2 lines", fn: rules.Leaf(rules.HasHadAtLeastXSystemicTreatmentLines, "2"), record: record, want: evaluation.Pass},
		{name: "between 1 and 3 lines", fn: rules.Leaf(rules.HasHadSystemicTreatmentLinesBetweenXAndY, "1", "3"), record: record, want: evaluation.Pass},
		{name: "treatment naive", fn: rules.Leaf(rules.HasHadAtMostXSystemicTreatmentLines, "0"), want: evaluation.Pass},
	})
}

// TestSystemicLinesBoundsMustBeOrdered verifies rejection of an empty range
func TestSystemicLinesBoundsMustBeOrdered(t *testing.T) {
	engine := newTestEngine(t)
	fn := rules.Leaf(rules.HasHadSystemicTreatmentLinesBetweenXAndY, "3", "1")

	if _, err := engine.Build(fn); !errors.Is(err, rules.ErrInvalidParameter) {
		t.Fatalf("Build(%s) error = %v, want ErrInvalidParameter", fn, err)
	}
}

// TestSurgeryRules verifies recent surgery checks
func TestSurgeryRules(t *testing.T) {
	surgery := func(end *string) patient.Record {
		s := patient.Surgery{Name: "Lobectomy"}
		if end != nil {
			s.EndDate = date(*end)
		}
		return patient.Record{Surgeries: []patient.Surgery{s}}
	}
	within := rules.Leaf(rules.HasHadSurgeryWithinLastXWeeks, "6")

	runRuleCases(t, []ruleCase{
		{name: "recent", fn: within, record: surgery(ptr("2024-05-10")), want: evaluation.Pass, message: "Lobectomy"},
		{name: "long ago", fn: within, record: surgery(ptr("2024-01-10")), want: evaluation.Fail},
		{name: "undated", fn: within, record: surgery(nil), want: evaluation.Undetermined, recoverable: true},
		{name: "no surgery", fn: within, want: evaluation.Fail},
		{name: "after date", fn: rules.Leaf(rules.HasHadSurgeryAfterDateX, "2024-01-01"), record: surgery(ptr("2024-01-10")), want: evaluation.Pass},
		{name: "before date", fn: rules.Leaf(rules.HasHadSurgeryAfterDateX, "2024-02-01"), record: surgery(ptr("2024-01-10")), want: evaluation.Fail},
	})
}
