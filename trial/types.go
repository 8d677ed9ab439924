// Package trial holds ingested trials and the configuration they are
// ingested from. Ingestion parses every inclusion rule, builds it against a
// rules.Engine and reports trials that cannot be mapped instead of failing
// the whole batch.
package trial

import (
	"cmp"
	"slices"

	"github.com/liamcoop/trialmatch/rules"
)

// CriterionReference cites the protocol text backing a criterion
type CriterionReference struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Compare orders references by ID, then by text
func (r CriterionReference) Compare(o CriterionReference) int {
	if c := cmp.Compare(r.ID, o.ID); c != 0 {
		return c
	}
	return cmp.Compare(r.Text, o.Text)
}

// SortReferences returns refs sorted and without duplicates
func SortReferences(refs []CriterionReference) []CriterionReference {
	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, CriterionReference.Compare)
	return slices.Compact(sorted)
}

// Eligibility is one criterion: a function tree and the references backing
// it. Functions are built and validated during ingestion.
type Eligibility struct {
	References []CriterionReference      `json:"references"`
	Function   rules.EligibilityFunction `json:"function"`
}

// NewEligibility creates an eligibility with sorted, de-duplicated
// references
func NewEligibility(fn rules.EligibilityFunction, refs ...CriterionReference) Eligibility {
	sorted := SortReferences(refs)
	if sorted == nil {
		sorted = []CriterionReference{}
	}
	return Eligibility{References: sorted, Function: fn}
}

// String is the display form used to order evaluations in reports
func (e Eligibility) String() string {
	return e.Function.String()
}

// TrialIdentification identifies a trial in reports
type TrialIdentification struct {
	TrialID string `json:"trialId"`
	Open    bool   `json:"open"`
	Acronym string `json:"acronym"`
	Title   string `json:"title"`
}

// CohortMetadata describes participation in a cohort
type CohortMetadata struct {
	CohortID       string `json:"cohortId"`
	Evaluable      bool   `json:"evaluable"`
	Open           bool   `json:"open"`
	SlotsAvailable bool   `json:"slotsAvailable"`
	Ignore         bool   `json:"ignore"`
	Description    string `json:"description"`
}

// Cohort is a group within a trial with its own criteria
type Cohort struct {
	Metadata    CohortMetadata `json:"metadata"`
	Eligibility []Eligibility  `json:"eligibility"`
}

// Trial is an ingested trial: general criteria apply to every cohort
type Trial struct {
	Identification     TrialIdentification `json:"identification"`
	GeneralEligibility []Eligibility       `json:"generalEligibility"`
	Cohorts            []Cohort            `json:"cohorts"`
}
