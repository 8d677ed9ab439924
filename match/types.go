// Package match evaluates ingested trials against one patient and derives
// trial and cohort level eligibility.
package match

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/trial"
)

// EvaluatedEligibility pairs a criterion with its evaluation. It is
// written as a two-element JSON array [eligibility, evaluation].
type EvaluatedEligibility struct {
	Eligibility trial.Eligibility
	Evaluation  evaluation.Evaluation
}

func (e EvaluatedEligibility) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Eligibility, e.Evaluation})
}

func (e *EvaluatedEligibility) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("evaluated eligibility must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Eligibility); err != nil {
		return fmt.Errorf("invalid eligibility: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Evaluation); err != nil {
		return fmt.Errorf("invalid evaluation: %w", err)
	}
	return nil
}

// Evaluations is the evaluation map of a trial or cohort, ordered by the
// display string of each eligibility and then by its references
type Evaluations []EvaluatedEligibility

// NewEvaluations returns pairs in display order
func NewEvaluations(pairs ...EvaluatedEligibility) Evaluations {
	sorted := make(Evaluations, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Eligibility, sorted[j].Eligibility
		if as, bs := a.String(), b.String(); as != bs {
			return as < bs
		}
		return compareReferences(a.References, b.References) < 0
	})
	return sorted
}

func compareReferences(a, b []trial.CriterionReference) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// All returns the evaluations without their eligibility
func (es Evaluations) All() []evaluation.Evaluation {
	all := make([]evaluation.Evaluation, 0, len(es))
	for _, e := range es {
		all = append(all, e.Evaluation)
	}
	return all
}

// MarshalJSON writes an empty array rather than null
func (es Evaluations) MarshalJSON() ([]byte, error) {
	if es == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]EvaluatedEligibility(es))
}

// CohortMatch is the outcome for one cohort
type CohortMatch struct {
	Metadata              trial.CohortMetadata `json:"metadata"`
	IsPotentiallyEligible bool                 `json:"isPotentiallyEligible"`
	Evaluations           Evaluations          `json:"evaluations"`
}

// TrialMatch is the outcome for one trial
type TrialMatch struct {
	Identification        trial.TrialIdentification `json:"identification"`
	IsPotentiallyEligible bool                      `json:"isPotentiallyEligible"`
	Evaluations           Evaluations               `json:"evaluations"`
	Cohorts               []CohortMatch             `json:"cohorts"`
}

// TreatmentMatch is the outcome of matching one patient against every
// trial
type TreatmentMatch struct {
	PatientID           string       `json:"patientId"`
	SampleID            string       `json:"sampleId"`
	ReferenceDate       time.Time    `json:"referenceDate"`
	ReferenceDateIsLive bool         `json:"referenceDateIsLive"`
	TrialMatches        []TrialMatch `json:"trialMatches"`
}
