package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/trialmatch/evaluators"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/rules"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

const trialsYAML = `trials:
  - trialId: FILE-1
    acronym: FROM-FILE
    title: Trial from a file
    open: true
    inclusionCriteria:
      - inclusionRule: IS_AT_LEAST_X_YEARS_OLD[18]
        references:
          - id: I-01
            text: Adults
  - trialId: FILE-2
    acronym: BROKEN
    inclusionCriteria:
      - inclusionRule: NOT_A_RULE
`

func newTestEngine(t *testing.T) *rules.Engine {
	t.Helper()
	res, err := rules.DefaultResources(rules.FixedReferenceDate(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("DefaultResources() failed: %v", err)
	}
	engine, err := evaluators.NewEngine(res)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

func writeTrials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trials.yaml")
	if err := os.WriteFile(path, []byte(trialsYAML), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

// TestLoadCombinesSources verifies that files and the store are ingested
// together and unmappable trials are reported
func TestLoadCombinesSources(t *testing.T) {
	ctx := context.Background()
	trials := store.NewInMemoryTrialStore()
	if err := trials.Add(ctx, trial.Config{
		TrialID: "STORE-1",
		Acronym: "FROM-STORE",
		Open:    true,
		InclusionCriteria: []trial.CriterionConfig{
			{InclusionRule: "HAS_MEASURABLE_DISEASE"},
		},
	}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	c := New(newTestEngine(t), trials, writeTrials(t))
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	got := c.Trials()
	if len(got) != 2 || got[0].Identification.TrialID != "FILE-1" || got[1].Identification.TrialID != "STORE-1" {
		t.Errorf("Trials() = %+v", got)
	}

	report := c.Unmappable()
	if len(report) != 1 || report[0].TrialID != "FILE-2" {
		t.Fatalf("Unmappable() = %+v, want FILE-2", report)
	}
	if report[0].Errors[0].Rule != "NOT_A_RULE" {
		t.Errorf("error rule = %q", report[0].Errors[0].Rule)
	}
	if logger.UnmappableTrials.Load() != 1 {
		t.Errorf("UnmappableTrials = %d, want 1", logger.UnmappableTrials.Load())
	}
	if c.LoadedAt().IsZero() {
		t.Error("LoadedAt() not set")
	}
}

// TestReloadSwapsTrials verifies that a reload replaces the trial set
func TestReloadSwapsTrials(t *testing.T) {
	ctx := context.Background()
	trials := store.NewInMemoryTrialStore()
	c := New(newTestEngine(t), trials)

	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(c.Trials()) != 0 {
		t.Fatalf("empty store loaded %d trials", len(c.Trials()))
	}

	cfg := trial.Config{TrialID: "T-1", Acronym: "ONE", InclusionCriteria: []trial.CriterionConfig{{InclusionRule: "IS_FEMALE"}}}
	if err := trials.Add(ctx, cfg); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	before := c.Trials()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(before) != 0 {
		t.Error("previously returned trials changed after reload")
	}
	if _, ok := c.Trial("T-1"); !ok {
		t.Error("Trial(T-1) not found after reload")
	}
}

// TestLoadKeepsTrialsOnSourceError verifies that a failing source leaves
// the current set in place
func TestLoadKeepsTrialsOnSourceError(t *testing.T) {
	ctx := context.Background()
	path := writeTrials(t)
	c := New(newTestEngine(t), nil, path)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if err := c.Load(ctx); err == nil {
		t.Fatal("Load() succeeded with a missing source")
	}
	if _, ok := c.Trial("FILE-1"); !ok {
		t.Error("trials were dropped after a failed reload")
	}
}

// TestSelect verifies selection by trial id
func TestSelect(t *testing.T) {
	c := New(newTestEngine(t), nil, writeTrials(t))
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	all, err := c.Select(nil)
	if err != nil || len(all) != 1 {
		t.Errorf("Select(nil) = %d trials, %v", len(all), err)
	}

	one, err := c.Select([]string{"FILE-1"})
	if err != nil || len(one) != 1 || one[0].Identification.Acronym != "FROM-FILE" {
		t.Errorf("Select(FILE-1) = %+v, %v", one, err)
	}

	if _, err := c.Select([]string{"FILE-2"}); !errors.Is(err, ErrUnknownTrial) {
		t.Errorf("Select(unmappable) error = %v, want ErrUnknownTrial", err)
	}

	for id, want := range map[string]bool{"FILE-1": true, "FILE-2": true, "NOPE-1": false} {
		if got := c.Contains(id); got != want {
			t.Errorf("Contains(%s) = %v, want %v", id, got, want)
		}
	}
}

// TestLoadWithSwapsEngine verifies that the engine is replaced only by a
// successful load
func TestLoadWithSwapsEngine(t *testing.T) {
	ctx := context.Background()
	path := writeTrials(t)
	first := newTestEngine(t)
	c := New(first, nil, path)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	second := newTestEngine(t)
	if err := c.LoadWith(ctx, second); err != nil {
		t.Fatalf("LoadWith() failed: %v", err)
	}
	if c.Engine() != second {
		t.Error("engine not replaced by LoadWith")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if err := c.LoadWith(ctx, newTestEngine(t)); err == nil {
		t.Fatal("LoadWith() succeeded without its source")
	}
	if c.Engine() != second {
		t.Error("engine replaced by a failed load")
	}
	if _, ok := c.Trial("FILE-1"); !ok {
		t.Error("trials lost by a failed load")
	}
}

// TestConcurrentReadsDuringReload verifies readers during reloads
func TestConcurrentReadsDuringReload(t *testing.T) {
	ctx := context.Background()
	c := New(newTestEngine(t), nil, writeTrials(t))
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := c.Load(ctx); err != nil {
				t.Errorf("Load() failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if len(c.Trials()) != 1 {
				t.Error("reader observed a partial trial set")
			}
		}()
	}
	wg.Wait()
}
