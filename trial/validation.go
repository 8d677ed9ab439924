package trial

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxIdentifierLength = 100
	maxCohortsPerTrial  = 200
	maxCriteriaPerGroup = 500
)

var validIdentifier = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidateConfig checks the structure of a trial configuration. Inclusion
// rules themselves are checked during ingestion.
func ValidateConfig(cfg Config) error {
	if err := validateIdentifier(cfg.TrialID); err != nil {
		return fmt.Errorf("invalid trial id %q: %w", cfg.TrialID, err)
	}

	if len(cfg.Cohorts) > maxCohortsPerTrial {
		return fmt.Errorf("trial %s has %d cohorts, maximum allowed is %d", cfg.TrialID, len(cfg.Cohorts), maxCohortsPerTrial)
	}
	if err := validateCriteria(cfg.InclusionCriteria); err != nil {
		return fmt.Errorf("trial %s: %w", cfg.TrialID, err)
	}

	seen := make(map[string]bool, len(cfg.Cohorts))
	for _, cohort := range cfg.Cohorts {
		if err := validateIdentifier(cohort.CohortID); err != nil {
			return fmt.Errorf("invalid cohort id %q in trial %s: %w", cohort.CohortID, cfg.TrialID, err)
		}
		if seen[cohort.CohortID] {
			return fmt.Errorf("cohort %s appears more than once in trial %s", cohort.CohortID, cfg.TrialID)
		}
		seen[cohort.CohortID] = true

		if err := validateCriteria(cohort.InclusionCriteria); err != nil {
			return fmt.Errorf("cohort %s of trial %s: %w", cohort.CohortID, cfg.TrialID, err)
		}
	}

	return nil
}

func validateCriteria(criteria []CriterionConfig) error {
	if len(criteria) > maxCriteriaPerGroup {
		return fmt.Errorf("%d criteria, maximum allowed is %d", len(criteria), maxCriteriaPerGroup)
	}
	for i, c := range criteria {
		if strings.TrimSpace(c.InclusionRule) == "" {
			return fmt.Errorf("criterion %d has an empty inclusion rule", i+1)
		}
		for _, ref := range c.References {
			if strings.TrimSpace(ref.ID) == "" {
				return fmt.Errorf("criterion %d has a reference without id", i+1)
			}
		}
	}
	return nil
}

func validateIdentifier(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(id), maxIdentifierLength)
	}
	if !validIdentifier.MatchString(id) {
		return fmt.Errorf("must start with a letter or digit, followed by letters, digits, '_', '.' or '-'")
	}
	return nil
}
