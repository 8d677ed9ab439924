package trial

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
trials:
  - trialId: TRIAL-1
    acronym: LUNG-1
    title: First line lung cancer
    open: true
    inclusionCriteria:
      - inclusionRule: IS_AT_LEAST_X_YEARS_OLD[18]
        references:
          - {id: I-01, text: Patients must be adults}
    cohorts:
      - cohortId: A
        evaluable: true
        open: true
        slotsAvailable: true
        inclusionCriteria:
          - inclusionRule: ACTIVATING_MUTATION_IN_GENE_X[EGFR]
`

func TestParseConfigsYAML(t *testing.T) {
	configs, err := ParseConfigs([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	cfg := configs[0]
	assert.Equal(t, "TRIAL-1", cfg.TrialID)
	assert.True(t, cfg.Open)
	require.Len(t, cfg.InclusionCriteria, 1)
	assert.Equal(t, "IS_AT_LEAST_X_YEARS_OLD[18]", cfg.InclusionCriteria[0].InclusionRule)
	assert.Equal(t, []CriterionReference{{ID: "I-01", Text: "Patients must be adults"}}, cfg.InclusionCriteria[0].References)
	require.Len(t, cfg.Cohorts, 1)
	assert.True(t, cfg.Cohorts[0].SlotsAvailable)
	assert.False(t, cfg.Cohorts[0].Ignore)
}

func TestParseConfigsRejectsUnknownFields(t *testing.T) {
	_, err := ParseConfigs([]byte("trials:\n  - trialId: T\n    inclusionRules: []\n"), FormatYAML)
	assert.Error(t, err)

	_, err = ParseConfigs([]byte(`{"trials": [{"trialId": "T", "cohort": []}]}`), FormatJSON)
	assert.Error(t, err)
}

func TestParseConfigsEmptyDocument(t *testing.T) {
	configs, err := ParseConfigs(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestMarshalConfigsRoundTrip(t *testing.T) {
	configs, err := ParseConfigs([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := MarshalConfigs(configs, format)
		require.NoError(t, err)

		again, err := ParseConfigs(data, format)
		require.NoError(t, err)
		assert.Equal(t, configs, again, "format %s", format)
	}
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatOf("trials.JSON"))
	assert.Equal(t, FormatJSON, FormatOf("https://example.org/trials.json?version=3"))
	assert.Equal(t, FormatYAML, FormatOf("trials.yaml"))
	assert.Equal(t, FormatYAML, FormatOf("trials"))
}

func TestLoadConfigsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	configs, err := LoadConfigs(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "LUNG-1", configs[0].Acronym)

	_, err = LoadConfigs(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(sampleYAML))
	}))
	defer server.Close()

	configs, err := NewFetcher(nil).WithRetries(2, time.Millisecond).Fetch(context.Background(), server.URL+"/trials")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcherUsesJSONContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trials": [{"trialId": "JSON-1", "open": true}]}`))
	}))
	defer server.Close()

	configs, err := NewFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "JSON-1", configs[0].TrialID)
}

func TestFetcherReportsNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewFetcher(nil).WithRetries(0, time.Millisecond).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
