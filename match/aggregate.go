package match

import (
	"sort"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/trial"
)

// ReferenceEvaluation is the display evaluation of one criterion reference
type ReferenceEvaluation struct {
	Reference  trial.CriterionReference `json:"reference"`
	Evaluation evaluation.Evaluation    `json:"evaluation"`
}

// EvaluationsPerReference collapses evaluations to one evaluation per
// criterion reference, merging evaluations that cite the same reference
// with evaluation.MergeWorst. Eligibilities without references are left
// out. The result is ordered by reference.
func EvaluationsPerReference(evals Evaluations) []ReferenceEvaluation {
	groups := make(map[trial.CriterionReference][]evaluation.Evaluation)
	for _, e := range evals {
		for _, ref := range e.Eligibility.References {
			groups[ref] = append(groups[ref], e.Evaluation)
		}
	}

	refs := make([]trial.CriterionReference, 0, len(groups))
	for ref := range groups {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Compare(refs[j]) < 0 })

	out := make([]ReferenceEvaluation, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ReferenceEvaluation{Reference: ref, Evaluation: evaluation.MergeWorst(groups[ref]...)})
	}
	return out
}

// EligibleCohort is a trial, or a cohort of it, the patient may enrol in
type EligibleCohort struct {
	TrialID     string `json:"trialId"`
	Acronym     string `json:"acronym"`
	CohortID    string `json:"cohortId,omitempty"`
	Description string `json:"description,omitempty"`
}

// EligibleTrials lists open trials the patient is potentially eligible
// for. Trials with cohorts are listed per open cohort with slots available;
// trials without cohorts are listed once.
func EligibleTrials(matches []TrialMatch) []EligibleCohort {
	var out []EligibleCohort
	for _, tm := range matches {
		id := tm.Identification
		if !tm.IsPotentiallyEligible || !id.Open {
			continue
		}
		if len(tm.Cohorts) == 0 {
			out = append(out, EligibleCohort{TrialID: id.TrialID, Acronym: id.Acronym})
			continue
		}
		for _, c := range tm.Cohorts {
			if c.IsPotentiallyEligible && c.Metadata.Open && c.Metadata.SlotsAvailable {
				out = append(out, EligibleCohort{
					TrialID:     id.TrialID,
					Acronym:     id.Acronym,
					CohortID:    c.Metadata.CohortID,
					Description: c.Metadata.Description,
				})
			}
		}
	}
	return out
}
