// Package catalog holds the ingested trial set of a running process and
// reloads it without interrupting readers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/rules"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

// ErrUnknownTrial is returned when selecting a trial that is not loaded
var ErrUnknownTrial = errors.New("unknown trial")

// Catalog ingests trial configurations from configuration sources and a
// trial store, and serves the resulting trials. Load builds a new
// database and swaps it in atomically; readers never see a partial load.
type Catalog struct {
	engine  *rules.Engine
	store   store.TrialStore
	sources []string

	mu       sync.RWMutex
	db       trial.Database
	loadedAt time.Time
}

// New creates an empty catalog. trials may be nil; sources are files or
// http(s) URLs read by trial.LoadConfigs.
func New(engine *rules.Engine, trials store.TrialStore, sources ...string) *Catalog {
	return &Catalog{
		engine:  engine,
		store:   trials,
		sources: sources,
		db:      trial.Database{Trials: []trial.Trial{}, Unmappable: []trial.UnmappableTrial{}},
	}
}

// Engine returns the engine criteria are built with
func (c *Catalog) Engine() *rules.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Load reads every configuration and replaces the ingested trial set.
// Unmappable trials do not fail the load; they are logged and reported by
// Unmappable. The current set is kept if reading any source fails.
func (c *Catalog) Load(ctx context.Context) error {
	return c.LoadWith(ctx, c.Engine())
}

// LoadWith loads like Load, ingesting with engine. On success engine
// replaces the catalog's engine together with the trial set.
func (c *Catalog) LoadWith(ctx context.Context, engine *rules.Engine) error {
	var configs []trial.Config
	for _, source := range c.sources {
		loaded, err := trial.LoadConfigs(ctx, source)
		if err != nil {
			return fmt.Errorf("failed to load trials from %s: %w", source, err)
		}
		configs = append(configs, loaded...)
	}
	if c.store != nil {
		stored, err := c.store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to load trials from store: %w", err)
		}
		configs = append(configs, store.Configs(stored)...)
	}

	db := trial.Ingest(configs, engine)

	c.mu.Lock()
	c.engine = engine
	c.db = db
	c.loadedAt = time.Now()
	c.mu.Unlock()

	logger.UnmappableTrials.Store(int64(len(db.Unmappable)))
	for _, u := range db.Unmappable {
		logger.Warn("unmappable trial",
			"trialId", u.TrialID,
			"cohortId", u.CohortID,
			"errors", len(u.Errors))
	}
	logger.Info("trial catalog loaded",
		"configs", len(configs),
		"trials", len(db.Trials),
		"unmappable", len(db.Unmappable))
	return nil
}

// Trials returns every loaded trial in configuration order
func (c *Catalog) Trials() []trial.Trial {
	c.mu.RLock()
	defer c.mu.RUnlock()

	trials := make([]trial.Trial, len(c.db.Trials))
	copy(trials, c.db.Trials)
	return trials
}

// Trial returns one loaded trial
func (c *Catalog) Trial(trialID string) (trial.Trial, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.Trial(trialID)
}

// Contains reports whether trialID was seen by the last load, either as a
// loaded trial or in the unmappable report
func (c *Catalog) Contains(trialID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.db.Trial(trialID); ok {
		return true
	}
	for _, u := range c.db.Unmappable {
		if u.TrialID == trialID {
			return true
		}
	}
	return false
}

// Select returns the trials with the given ids in the order given. An
// empty selection returns every trial.
func (c *Catalog) Select(trialIDs []string) ([]trial.Trial, error) {
	if len(trialIDs) == 0 {
		return c.Trials(), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	selected := make([]trial.Trial, 0, len(trialIDs))
	for _, id := range trialIDs {
		t, ok := c.db.Trial(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTrial, id)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// Unmappable returns the report of trials and cohorts left out of the
// last load
func (c *Catalog) Unmappable() []trial.UnmappableTrial {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := make([]trial.UnmappableTrial, len(c.db.Unmappable))
	copy(report, c.db.Unmappable)
	return report
}

// LoadedAt returns when the current trial set was loaded
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
