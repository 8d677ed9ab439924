package evaluators

import (
	"errors"
	"testing"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
)

// TestMatchesClinicalExpressionX verifies CEL expressions over the record
func TestMatchesClinicalExpressionX(t *testing.T) {
	born := func(year int) patient.Record {
		return patient.Record{Demographics: patient.Demographics{BirthYear: year, Gender: patient.Female}}
	}
	elderly := rules.Leaf(rules.MatchesClinicalExpressionX, "patient.demographics.birthYear < 1960")

	runRuleCases(t, []ruleCase{
		{name: "matches", fn: elderly, record: born(1955), want: evaluation.Pass},
		{name: "does not match", fn: elderly, record: born(1970), want: evaluation.Fail},
		{
			name:   "reference date",
			fn:     rules.Leaf(rules.MatchesClinicalExpressionX, "referenceDate.getFullYear() == 2024"),
			want:   evaluation.Pass,
			record: born(1970),
		},
		{
			name:   "list fields",
			fn:     rules.Leaf(rules.MatchesClinicalExpressionX, `patient.tumor.doids.exists(d, d == "3910")`),
			record: patient.Record{Tumor: patient.TumorDetails{DOIDs: []string{"3910"}}},
			want:   evaluation.Pass,
		},
		{
			name:        "unknown field",
			fn:          rules.Leaf(rules.MatchesClinicalExpressionX, "patient.clinicalStatus.who <= 1"),
			record:      born(1970),
			want:        evaluation.Undetermined,
			recoverable: true,
		},
	})
}

// TestInvalidClinicalExpression verifies that expressions are compiled when
// the function is built
func TestInvalidClinicalExpression(t *testing.T) {
	engine := newTestEngine(t)

	for _, expression := range []string{
		"patient.demographics.birthYear <",
		"unknownVariable > 3",
		`"not a condition"`,
	} {
		fn := rules.Leaf(rules.MatchesClinicalExpressionX, expression)
		if _, err := engine.Build(fn); !errors.Is(err, rules.ErrInvalidParameter) {
			t.Errorf("Build(%s) error = %v, want ErrInvalidParameter", fn, err)
		}
	}
}
