package main

import (
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/rules"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

// API request and response models

// MatchRequest is the body of POST /api/v1/match. An empty trial list
// matches every loaded trial.
type MatchRequest struct {
	Patient  *patient.Record `json:"patient"`
	TrialIDs []string        `json:"trialIds,omitempty"`
}

// ValidateRequest is the body of POST /api/v1/trials/validate
type ValidateRequest struct {
	Trials []trial.Config `json:"trials"`
}

// ValidationResponse reports which configured trials would be ingested
type ValidationResponse struct {
	Valid      bool                    `json:"valid"`
	Ingested   []string                `json:"ingested"`
	Unmappable []trial.UnmappableTrial `json:"unmappable"`
}

// UnmappableResponse is the unmappable report of the loaded catalog
type UnmappableResponse struct {
	Unmappable []trial.UnmappableTrial `json:"unmappable"`
}

// TrialsListResponse lists stored trial configurations
type TrialsListResponse struct {
	Trials []*store.StoredTrial `json:"trials"`
}

// RulesListResponse lists every rule the engine knows
type RulesListResponse struct {
	Rules []rules.RuleDefinition `json:"rules"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status              string       `json:"status"`
	TrialsLoaded        int          `json:"trialsLoaded"`
	UnmappableTrials    int          `json:"unmappableTrials"`
	ReferenceDate       string       `json:"referenceDate"`
	ReferenceDateIsLive bool         `json:"referenceDateIsLive"`
	Stats               logger.Stats `json:"stats"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
