package trial

import (
	"github.com/liamcoop/trialmatch/rules"
)

// Validator checks that an eligibility function can be built.
// *rules.Engine implements it.
type Validator interface {
	Validate(fn rules.EligibilityFunction) error
}

// CriterionError is one criterion that could not be ingested. Rule is the
// configured rule text, empty for structural errors.
type CriterionError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// UnmappableTrial reports a trial, or one cohort of it, that was left out
// of the ingested set
type UnmappableTrial struct {
	TrialID  string           `json:"trialId"`
	CohortID string           `json:"cohortId,omitempty"`
	Errors   []CriterionError `json:"errors"`
}

// Database is the result of ingestion: the trials that can be evaluated and
// a report of everything that could not be mapped
type Database struct {
	Trials     []Trial           `json:"trials"`
	Unmappable []UnmappableTrial `json:"unmappable"`
}

// IsValid reports whether every configured trial and cohort was ingested
func (db Database) IsValid() bool {
	return len(db.Unmappable) == 0
}

// Trial returns the ingested trial with the given id
func (db Database) Trial(trialID string) (Trial, bool) {
	for _, t := range db.Trials {
		if t.Identification.TrialID == trialID {
			return t, true
		}
	}
	return Trial{}, false
}

// Ingest parses and builds every inclusion rule of configs. Errors are
// collected rather than returned: a trial with a failing general criterion
// is left out entirely, a cohort with a failing criterion is left out of
// its trial, and every failure is listed in Database.Unmappable.
func Ingest(configs []Config, validator Validator) Database {
	db := Database{Trials: []Trial{}, Unmappable: []UnmappableTrial{}}
	seen := make(map[string]bool, len(configs))

	for _, cfg := range configs {
		if err := ValidateConfig(cfg); err != nil {
			db.Unmappable = append(db.Unmappable, UnmappableTrial{
				TrialID: cfg.TrialID,
				Errors:  []CriterionError{{Message: err.Error()}},
			})
			continue
		}
		if seen[cfg.TrialID] {
			db.Unmappable = append(db.Unmappable, UnmappableTrial{
				TrialID: cfg.TrialID,
				Errors:  []CriterionError{{Message: "trial id appears more than once"}},
			})
			continue
		}
		seen[cfg.TrialID] = true

		general, generalErrors := ingestCriteria(cfg.InclusionCriteria, validator)
		if len(generalErrors) > 0 {
			db.Unmappable = append(db.Unmappable, UnmappableTrial{TrialID: cfg.TrialID, Errors: generalErrors})
		}

		cohorts := make([]Cohort, 0, len(cfg.Cohorts))
		for _, cc := range cfg.Cohorts {
			eligibility, errs := ingestCriteria(cc.InclusionCriteria, validator)
			if len(errs) > 0 {
				db.Unmappable = append(db.Unmappable, UnmappableTrial{TrialID: cfg.TrialID, CohortID: cc.CohortID, Errors: errs})
				continue
			}
			cohorts = append(cohorts, Cohort{
				Metadata: CohortMetadata{
					CohortID:       cc.CohortID,
					Evaluable:      cc.Evaluable,
					Open:           cc.Open,
					SlotsAvailable: cc.SlotsAvailable,
					Ignore:         cc.Ignore,
					Description:    cc.Description,
				},
				Eligibility: eligibility,
			})
		}

		if len(generalErrors) > 0 {
			continue
		}
		db.Trials = append(db.Trials, Trial{
			Identification: TrialIdentification{
				TrialID: cfg.TrialID,
				Open:    cfg.Open,
				Acronym: cfg.Acronym,
				Title:   cfg.Title,
			},
			GeneralEligibility: general,
			Cohorts:            cohorts,
		})
	}
	return db
}

func ingestCriteria(criteria []CriterionConfig, validator Validator) ([]Eligibility, []CriterionError) {
	eligibility := make([]Eligibility, 0, len(criteria))
	var errs []CriterionError
	for _, c := range criteria {
		fn, err := Parse(c.InclusionRule)
		if err == nil {
			err = validator.Validate(fn)
		}
		if err != nil {
			errs = append(errs, CriterionError{Rule: c.InclusionRule, Message: err.Error()})
			continue
		}
		eligibility = append(eligibility, NewEligibility(fn, c.References...))
	}
	return eligibility, errs
}
