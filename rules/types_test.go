package rules

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestEligibilityFunctionString verifies the configuration rendering of
// function trees
func TestEligibilityFunctionString(t *testing.T) {
	testCases := []struct {
		name string
		fn   EligibilityFunction
		want string
	}{
		{"bare leaf", Leaf(HasAnyComplication), "HAS_ANY_COMPLICATION"},
		{"leaf with literal", Leaf(IsAtLeastXYearsOld, "18"), "IS_AT_LEAST_X_YEARS_OLD[18]"},
		{"leaf with two literals", Leaf(HasHadSystemicTreatmentLinesBetweenXAndY, "1", "3"), "HAS_HAD_SYSTEMIC_TREATMENT_LINES_BETWEEN_X_AND_Y[1, 3]"},
		{"composite", Composite(And, Leaf(IsMale), Leaf(IsAtLeastXYearsOld, "18")), "AND(IS_MALE, IS_AT_LEAST_X_YEARS_OLD[18])"},
		{"nested composite", Composite(Not, Composite(Or, Leaf(IsMale), Leaf(IsFemale))), "NOT(OR(IS_MALE, IS_FEMALE))"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestEligibilityFunctionJSON verifies that literals serialize as strings
// and nested functions as objects
func TestEligibilityFunctionJSON(t *testing.T) {
	fn := Composite(And, Leaf(IsAtLeastXYearsOld, "18"), Leaf(IsMale))

	data, err := json.Marshal(fn)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	want := `{"rule":"AND","parameters":[{"rule":"IS_AT_LEAST_X_YEARS_OLD","parameters":["18"]},{"rule":"IS_MALE","parameters":[]}]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded EligibilityFunction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if !decoded.Equal(fn) {
		t.Errorf("round trip changed the tree: %s", decoded)
	}
}

// TestParameterUnmarshalRejectsNumbers verifies that literals must be
// strings
func TestParameterUnmarshalRejectsNumbers(t *testing.T) {
	var fn EligibilityFunction
	err := json.Unmarshal([]byte(`{"rule":"IS_AT_LEAST_X_YEARS_OLD","parameters":[18]}`), &fn)
	if err == nil {
		t.Fatal("Unmarshal() should reject numeric parameters")
	}
}

// TestParameterAccessors verifies the tagged parameter variant
func TestParameterAccessors(t *testing.T) {
	lit := Literal("18")
	if lit.IsNested() {
		t.Error("literal should not be nested")
	}
	if v, ok := lit.Literal(); !ok || v != "18" {
		t.Errorf("Literal() = %q, %v", v, ok)
	}
	if _, ok := lit.Function(); ok {
		t.Error("literal should not hold a function")
	}

	nested := Nested(Leaf(IsMale))
	if !nested.IsNested() {
		t.Error("nested parameter should be nested")
	}
	if fn, ok := nested.Function(); !ok || fn.Rule != IsMale {
		t.Errorf("Function() = %v, %v", fn, ok)
	}
	if _, ok := nested.Literal(); ok {
		t.Error("nested parameter should not be a literal")
	}
	if lit.Equal(nested) {
		t.Error("literal and nested parameter should differ")
	}
}

// TestParseRule verifies rule name lookup
func TestParseRule(t *testing.T) {
	rule, err := ParseRule("HAS_ANY_COMPLICATION")
	if err != nil {
		t.Fatalf("ParseRule() failed: %v", err)
	}
	if rule != HasAnyComplication {
		t.Errorf("ParseRule() = %s", rule)
	}

	if _, err := ParseRule("HAS_ANY_COMPLICATIONS"); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("ParseRule() error = %v, want ErrUnknownRule", err)
	}
}

// TestCompositeRuleSet verifies which rules are combinators
func TestCompositeRuleSet(t *testing.T) {
	composites := map[EligibilityRule]bool{And: true, Or: true, Not: true, WarnIf: true}
	for _, def := range Definitions() {
		if def.Composite != composites[def.Rule] {
			t.Errorf("%s composite = %v", def.Rule, def.Composite)
		}
	}
}
