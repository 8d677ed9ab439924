package evaluators

import (
	"testing"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

func labs(values ...patient.LabValue) patient.Record {
	return patient.Record{LabValues: values}
}

func hb(day string, value float64, unit string) patient.LabValue {
	return patient.LabValue{Code: labHemoglobin, Date: *date(day), Value: value, Unit: unit}
}

// TestHasHemoglobinOfAtLeastX verifies thresholds, margin of error and the
// choice of measurement
func TestHasHemoglobinOfAtLeastX(t *testing.T) {
	fn := rules.Leaf(rules.HasHemoglobinGPerDLOfAtLeastX, "9")

	runRuleCases(t, []ruleCase{
		{name: "sufficient", fn: fn, record: labs(hb("2024-05-01", 10, "g/dL")), want: evaluation.Pass},
		{name: "within margin", fn: fn, record: labs(hb("2024-05-01", 8.5, "g/dL")), want: evaluation.Undetermined, recoverable: true},
		{name: "insufficient", fn: fn, record: labs(hb("2024-05-01", 7, "g/dL")), want: evaluation.Fail, recoverable: true, message: "Hemoglobin 7"},
		{name: "converted from mmol/L", fn: fn, record: labs(hb("2024-05-01", 6, "mmol/L")), want: evaluation.Pass},
		{name: "unknown unit", fn: fn, record: labs(hb("2024-05-01", 10, "mg")), want: evaluation.Undetermined, recoverable: true},
		{name: "most recent wins", fn: fn, record: labs(hb("2024-01-01", 7, ""), hb("2024-05-01", 10, "")), want: evaluation.Pass},
		{name: "future ignored", fn: fn, record: labs(hb("2024-05-01", 10, ""), hb("2024-07-01", 3, "")), want: evaluation.Pass},
		{name: "not measured", fn: fn, want: evaluation.Undetermined, recoverable: true},
	})
}

// TestHasCreatinineULNOfAtMostX verifies comparisons relative to the upper
// limit of normal
func TestHasCreatinineULNOfAtMostX(t *testing.T) {
	fn := rules.Leaf(rules.HasCreatinineULNOfAtMostX, "1.5")
	crea := func(value float64, upper *float64) patient.Record {
		return labs(patient.LabValue{Code: labCreatinine, Date: *date("2024-05-15"), Value: value, Unit: "umol/L", RefLimitUp: upper})
	}

	runRuleCases(t, []ruleCase{
		{name: "normal", fn: fn, record: crea(100, ptr(90.0)), want: evaluation.Pass},
		{name: "elevated", fn: fn, record: crea(200, ptr(90.0)), want: evaluation.Fail, recoverable: true},
		{name: "no reference limit", fn: fn, record: crea(100, nil), want: evaluation.Undetermined, recoverable: true},
	})
}

// TestCellCounts verifies the absolute count rules
func TestCellCounts(t *testing.T) {
	record := labs(
		patient.LabValue{Code: labLeukocytes, Date: *date("2024-05-20"), Value: 4.2},
		patient.LabValue{Code: labPlatelets, Date: *date("2024-05-20"), Value: 80},
	)

	runRuleCases(t, []ruleCase{
		{name: "leukocytes", fn: rules.Leaf(rules.HasLeukocytesAbsOfAtLeastX, "3"), record: record, want: evaluation.Pass},
		{name: "platelets", fn: rules.Leaf(rules.HasPlateletsAbsOfAtLeastX, "100"), record: record, want: evaluation.Fail, recoverable: true},
	})
}
