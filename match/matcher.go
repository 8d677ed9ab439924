package match

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
	"github.com/liamcoop/trialmatch/trial"
)

// Matcher evaluates trials for a patient. It is safe for concurrent use.
type Matcher struct {
	engine      *rules.Engine
	parallelism int
}

// NewMatcher creates a matcher evaluating up to parallelism trials at a
// time. Values below 1 use the number of CPUs.
func NewMatcher(engine *rules.Engine, parallelism int) *Matcher {
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}
	return &Matcher{engine: engine, parallelism: parallelism}
}

// Match evaluates every trial against record. Trial matches keep the order
// of trials. The context is checked between trials only.
func (m *Matcher) Match(ctx context.Context, record *patient.Record, trials []trial.Trial) (TreatmentMatch, error) {
	results := make([]TrialMatch, len(trials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, t := range trials {
		if gctx.Err() != nil {
			break
		}
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tm, err := m.MatchTrial(record, t)
			if err != nil {
				return err
			}
			results[i] = tm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TreatmentMatch{}, err
	}
	if err := ctx.Err(); err != nil {
		return TreatmentMatch{}, err
	}

	refDate := m.engine.Resources().ReferenceDate
	match := TreatmentMatch{
		PatientID:           record.PatientID,
		SampleID:            record.SampleID,
		ReferenceDate:       refDate.Date(),
		ReferenceDateIsLive: refDate.IsLive(),
		TrialMatches:        results,
	}

	logger.MatchRuns.Add(1)
	logger.Info("match completed",
		"patientId", record.PatientID,
		"trials", len(trials),
		"eligibleCohorts", len(EligibleTrials(match.TrialMatches)))
	return match, nil
}

// MatchTrial evaluates one trial. A cohort is potentially eligible only if
// the trial is, the cohort is evaluable and not ignored, and none of its
// own criteria excludes the patient.
func (m *Matcher) MatchTrial(record *patient.Record, t trial.Trial) (TrialMatch, error) {
	general, err := m.evaluate(record, t.GeneralEligibility)
	if err != nil {
		return TrialMatch{}, fmt.Errorf("trial %s: %w", t.Identification.TrialID, err)
	}
	trialEligible := evaluation.IsPotentiallyEligible(general.All())

	cohorts := make([]CohortMatch, 0, len(t.Cohorts))
	for _, c := range t.Cohorts {
		evals, err := m.evaluate(record, c.Eligibility)
		if err != nil {
			return TrialMatch{}, fmt.Errorf("trial %s cohort %s: %w", t.Identification.TrialID, c.Metadata.CohortID, err)
		}
		cohorts = append(cohorts, CohortMatch{
			Metadata: c.Metadata,
			IsPotentiallyEligible: trialEligible &&
				c.Metadata.Evaluable &&
				!c.Metadata.Ignore &&
				evaluation.IsPotentiallyEligible(evals.All()),
			Evaluations: evals,
		})
	}

	return TrialMatch{
		Identification:        t.Identification,
		IsPotentiallyEligible: trialEligible,
		Evaluations:           general,
		Cohorts:               cohorts,
	}, nil
}

func (m *Matcher) evaluate(record *patient.Record, eligibility []trial.Eligibility) (Evaluations, error) {
	pairs := make([]EvaluatedEligibility, 0, len(eligibility))
	for _, e := range eligibility {
		fn, err := m.engine.Build(e.Function)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, EvaluatedEligibility{Eligibility: e, Evaluation: fn.Evaluate(record)})
	}
	return NewEvaluations(pairs...), nil
}
