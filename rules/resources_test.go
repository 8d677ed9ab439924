package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/cel-go/common/types"

	"github.com/liamcoop/trialmatch/patient"
)

// TestDoidModel verifies ancestry lookups
func TestDoidModel(t *testing.T) {
	doid := testResources(t).Doid

	testCases := []struct {
		doid, ancestor string
		want           bool
	}{
		{"3910", "1324", true},
		{"3910", "162", true},
		{"3910", "3910", true},
		{"1240", "2531", true},
		{"3910", "2531", false},
		{"5844", "162", false},
		{"unknown", "162", false},
	}
	for _, tc := range testCases {
		if got := doid.IsDescendantOf(tc.doid, tc.ancestor); got != tc.want {
			t.Errorf("IsDescendantOf(%s, %s) = %v, want %v", tc.doid, tc.ancestor, got, tc.want)
		}
	}

	if got := doid.Name("1324"); got != "lung cancer" {
		t.Errorf("Name() = %q", got)
	}
}

// TestIcdModel verifies title resolution and code hierarchy
func TestIcdModel(t *testing.T) {
	icd := testResources(t).Icd

	node, ok := icd.ResolveTitle(" CHRONIC PAIN ")
	if !ok || node.Code != "MG30" {
		t.Fatalf("ResolveTitle() = %+v, %v", node, ok)
	}
	if !IsCodeOrChild("MG30.10", node.Code) {
		t.Error("MG30.10 should be a child of MG30")
	}
	if IsCodeOrChild("ME04", node.Code) {
		t.Error("ME04 should not be a child of MG30")
	}
}

// TestLoadResourcesFromFile verifies loading a custom bundle
func TestLoadResourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	bundle := `
doid:
  - {id: "162", name: cancer}
genes: [EGFR]
drugs: [Osimertinib]
medicationCategories: [Opioids]
icd:
  - {code: ME04, title: Ascites}
`
	if err := os.WriteFile(path, []byte(bundle), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	res, err := LoadResources(path, LiveReferenceDate(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("LoadResources() failed: %v", err)
	}
	if _, ok := res.Genes.Resolve("KRAS"); ok {
		t.Error("custom bundle should not contain KRAS")
	}
	if _, ok := res.Drugs.Resolve("osimertinib"); !ok {
		t.Error("custom bundle should contain Osimertinib")
	}
	if !res.ReferenceDate.IsLive() || res.ReferenceDate.Date().Hour() != 0 {
		t.Errorf("live reference date = %v", res.ReferenceDate.Date())
	}
}

// TestLoadResourcesErrors verifies that unreadable bundles are reported
func TestLoadResourcesErrors(t *testing.T) {
	if _, err := LoadResources(filepath.Join(t.TempDir(), "missing.yaml"), FixedReferenceDate(testReferenceDate)); err == nil {
		t.Error("LoadResources() should fail for a missing file")
	}
	if _, err := ParseResources([]byte("genes: {not: [a list"), FixedReferenceDate(testReferenceDate)); err == nil {
		t.Error("ParseResources() should fail for malformed YAML")
	}
}

// TestExpressionCompilerEvaluatesRecord verifies expressions against the
// record activation
func TestExpressionCompilerEvaluatesRecord(t *testing.T) {
	compiler, err := NewExpressionCompiler()
	if err != nil {
		t.Fatalf("NewExpressionCompiler() failed: %v", err)
	}
	who := 1
	record := &patient.Record{
		PatientID:      "P1",
		Demographics:   patient.Demographics{BirthYear: 1955, Gender: patient.Female},
		ClinicalStatus: patient.ClinicalStatus{WHO: &who},
	}
	facts, err := Activation(record, testReferenceDate)
	if err != nil {
		t.Fatalf("Activation() failed: %v", err)
	}

	testCases := []struct {
		expression string
		want       bool
	}{
		{`patient.demographics.birthYear < 1960`, true},
		{`patient.demographics.gender == "MALE"`, false},
		{`patient.clinicalStatus.who <= 1 && patient.patientId == "P1"`, true},
		{`double(referenceDate.getFullYear()) - patient.demographics.birthYear >= 70.0`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.expression, func(t *testing.T) {
			prog, err := compiler.Compile(tc.expression)
			if err != nil {
				t.Fatalf("Compile() failed: %v", err)
			}
			out, _, err := prog.Eval(facts)
			if err != nil {
				t.Fatalf("Eval() failed: %v", err)
			}
			if out != types.Bool(tc.want) {
				t.Errorf("Eval() = %v, want %v", out, tc.want)
			}
		})
	}
}

// TestParseReferenceDate verifies fixed and live reference dates
func TestParseReferenceDate(t *testing.T) {
	now := time.Date(2025, time.March, 4, 15, 30, 0, 0, time.UTC)

	live, err := ParseReferenceDate("", now)
	if err != nil {
		t.Fatalf("ParseReferenceDate(\"\") failed: %v", err)
	}
	if !live.IsLive() || !live.Date().Equal(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("live provider = %v live=%v", live.Date(), live.IsLive())
	}

	fixed, err := ParseReferenceDate("2024-06-01", now)
	if err != nil {
		t.Fatalf("ParseReferenceDate() failed: %v", err)
	}
	if fixed.IsLive() || fixed.Date().Format(DateLayout) != "2024-06-01" {
		t.Errorf("fixed provider = %v live=%v", fixed.Date(), fixed.IsLive())
	}

	if _, err := ParseReferenceDate("01/06/2024", now); err == nil {
		t.Error("ParseReferenceDate() accepted a date in the wrong layout")
	}
}
