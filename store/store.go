// Package store persists trial configurations and match results.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/trialmatch/trial"
)

var (
	// ErrNotFound is returned when a trial or match run does not exist
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when adding a trial whose ID is taken
	ErrExists = errors.New("already exists")
)

// StoredTrial is a trial configuration with its bookkeeping timestamps
type StoredTrial struct {
	Config    trial.Config `json:"config"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// TrialStore manages trial configuration persistence
type TrialStore interface {
	// Add a new trial configuration
	Add(ctx context.Context, cfg trial.Config) error

	// Get a trial configuration by trial ID
	Get(ctx context.Context, trialID string) (*StoredTrial, error)

	// List every trial configuration ordered by trial ID
	List(ctx context.Context) ([]*StoredTrial, error)

	// Update replaces an existing trial configuration
	Update(ctx context.Context, cfg trial.Config) error

	// Delete a trial configuration
	Delete(ctx context.Context, trialID string) error
}

// Configs extracts the configurations from stored trials
func Configs(stored []*StoredTrial) []trial.Config {
	configs := make([]trial.Config, 0, len(stored))
	for _, st := range stored {
		configs = append(configs, st.Config)
	}
	return configs
}

// InMemoryTrialStore implements TrialStore using a map. It is safe for
// concurrent use.
type InMemoryTrialStore struct {
	trials map[string]*StoredTrial
	mu     sync.RWMutex
	now    func() time.Time
}

// NewInMemoryTrialStore creates an empty in-memory trial store
func NewInMemoryTrialStore() *InMemoryTrialStore {
	return &InMemoryTrialStore{
		trials: make(map[string]*StoredTrial),
		now:    time.Now,
	}
}

func (s *InMemoryTrialStore) Add(_ context.Context, cfg trial.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[cfg.TrialID]; exists {
		return fmt.Errorf("trial %s: %w", cfg.TrialID, ErrExists)
	}

	now := s.now()
	s.trials[cfg.TrialID] = &StoredTrial{Config: cfg, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *InMemoryTrialStore) Get(_ context.Context, trialID string) (*StoredTrial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.trials[trialID]
	if !exists {
		return nil, fmt.Errorf("trial %s: %w", trialID, ErrNotFound)
	}
	stCopy := *st
	return &stCopy, nil
}

func (s *InMemoryTrialStore) List(_ context.Context) ([]*StoredTrial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*StoredTrial, 0, len(s.trials))
	for _, st := range s.trials {
		stCopy := *st
		list = append(list, &stCopy)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Config.TrialID < list[j].Config.TrialID })
	return list, nil
}

// Update keeps the original creation time
func (s *InMemoryTrialStore) Update(_ context.Context, cfg trial.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.trials[cfg.TrialID]
	if !exists {
		return fmt.Errorf("trial %s: %w", cfg.TrialID, ErrNotFound)
	}

	s.trials[cfg.TrialID] = &StoredTrial{Config: cfg, CreatedAt: existing.CreatedAt, UpdatedAt: s.now()}
	return nil
}

func (s *InMemoryTrialStore) Delete(_ context.Context, trialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[trialID]; !exists {
		return fmt.Errorf("trial %s: %w", trialID, ErrNotFound)
	}
	delete(s.trials, trialID)
	return nil
}
