package trial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.yaml.in/yaml/v3"
)

// Config is the configuration of one trial as written by trial curators.
// Inclusion rules are strings in the syntax accepted by Parse.
type Config struct {
	TrialID           string            `json:"trialId" yaml:"trialId"`
	Acronym           string            `json:"acronym" yaml:"acronym"`
	Title             string            `json:"title" yaml:"title"`
	Open              bool              `json:"open" yaml:"open"`
	InclusionCriteria []CriterionConfig `json:"inclusionCriteria,omitempty" yaml:"inclusionCriteria,omitempty"`
	Cohorts           []CohortConfig    `json:"cohorts,omitempty" yaml:"cohorts,omitempty"`
}

// CriterionConfig is one configured inclusion criterion
type CriterionConfig struct {
	InclusionRule string               `json:"inclusionRule" yaml:"inclusionRule"`
	References    []CriterionReference `json:"references,omitempty" yaml:"references,omitempty"`
}

// CohortConfig is the configuration of one cohort
type CohortConfig struct {
	CohortID          string            `json:"cohortId" yaml:"cohortId"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	Evaluable         bool              `json:"evaluable" yaml:"evaluable"`
	Open              bool              `json:"open" yaml:"open"`
	SlotsAvailable    bool              `json:"slotsAvailable" yaml:"slotsAvailable"`
	Ignore            bool              `json:"ignore" yaml:"ignore"`
	InclusionCriteria []CriterionConfig `json:"inclusionCriteria,omitempty" yaml:"inclusionCriteria,omitempty"`
}

// configFile is the document layout of a trial configuration file
type configFile struct {
	Trials []Config `json:"trials" yaml:"trials"`
}

// Format of a configuration document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf guesses the format of a file or URL from its extension. YAML is
// the default.
func FormatOf(name string) Format {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseConfigs decodes a configuration document. Unknown fields are
// rejected so that misspelled keys do not silently drop criteria.
func ParseConfigs(data []byte, format Format) ([]Config, error) {
	var file configFile
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse trial configuration: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to parse trial configuration: %w", err)
		}
	}
	return file.Trials, nil
}

// MarshalConfigs encodes configs in the layout read by ParseConfigs
func MarshalConfigs(configs []Config, format Format) ([]byte, error) {
	file := configFile{Trials: configs}
	if format == FormatJSON {
		return json.MarshalIndent(file, "", "  ")
	}
	return yaml.Marshal(file)
}

// LoadConfigs reads trial configuration from a file, or from a URL when
// source starts with http:// or https://
func LoadConfigs(ctx context.Context, source string) ([]Config, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewFetcher(nil).Fetch(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read trial configuration: %w", err)
	}
	return ParseConfigs(data, FormatOf(source))
}

// Fetcher downloads trial configuration over HTTP, retrying transient
// failures
type Fetcher struct {
	client *retryablehttp.Client
}

// NewFetcher creates a fetcher retrying up to three times. A nil logger
// disables request logging.
func NewFetcher(logger *slog.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 60 * time.Second
	client.Logger = nil
	if logger != nil {
		client.Logger = logger
	}
	return &Fetcher{client: client}
}

// WithRetries sets the number of retries after the first attempt
func (f *Fetcher) WithRetries(retries int, wait time.Duration) *Fetcher {
	f.client.RetryMax = retries
	f.client.RetryWaitMin = wait
	f.client.RetryWaitMax = wait
	return f
}

// Fetch downloads and parses the configuration document at url
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Config, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trial configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch trial configuration: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read trial configuration: %w", err)
	}

	format := FormatOf(url)
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		format = FormatJSON
	}
	return ParseConfigs(data, format)
}
