package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/trialmatch/match"
)

// MatchStore keeps the results of match runs
type MatchStore interface {
	// Save stores a match and returns its run ID
	Save(ctx context.Context, m match.TreatmentMatch) (uuid.UUID, error)

	// Get returns the match stored under a run ID
	Get(ctx context.Context, runID uuid.UUID) (match.TreatmentMatch, error)
}

// PostgresMatchStore stores matches in the match_runs table
type PostgresMatchStore struct {
	db *sql.DB
}

// NewPostgresMatchStore creates a PostgreSQL-backed MatchStore
func NewPostgresMatchStore(db *sql.DB) *PostgresMatchStore {
	return &PostgresMatchStore{db: db}
}

func (s *PostgresMatchStore) Save(ctx context.Context, m match.TreatmentMatch) (uuid.UUID, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode match: %w", err)
	}

	runID := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_runs (id, patient_id, reference_date, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, runID, m.PatientID, m.ReferenceDate, data, time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert match run: %w", err)
	}
	return runID, nil
}

func (s *PostgresMatchStore) Get(ctx context.Context, runID uuid.UUID) (match.TreatmentMatch, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM match_runs WHERE id = $1`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return match.TreatmentMatch{}, fmt.Errorf("match run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return match.TreatmentMatch{}, fmt.Errorf("failed to get match run: %w", err)
	}

	var m match.TreatmentMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return match.TreatmentMatch{}, fmt.Errorf("invalid stored match: %w", err)
	}
	return m, nil
}

// InMemoryMatchStore implements MatchStore with a map
type InMemoryMatchStore struct {
	runs map[uuid.UUID]match.TreatmentMatch
	mu   sync.RWMutex
}

// NewInMemoryMatchStore creates an empty in-memory match store
func NewInMemoryMatchStore() *InMemoryMatchStore {
	return &InMemoryMatchStore{runs: make(map[uuid.UUID]match.TreatmentMatch)}
}

func (s *InMemoryMatchStore) Save(_ context.Context, m match.TreatmentMatch) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New()
	s.runs[runID] = m
	return runID, nil
}

func (s *InMemoryMatchStore) Get(_ context.Context, runID uuid.UUID) (match.TreatmentMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.runs[runID]
	if !ok {
		return match.TreatmentMatch{}, fmt.Errorf("match run %s: %w", runID, ErrNotFound)
	}
	return m, nil
}
