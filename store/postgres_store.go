package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/trialmatch/trial"
)

// PostgresTrialStore implements TrialStore backed by the trial_configs
// table. Configurations are stored as JSONB.
type PostgresTrialStore struct {
	db *sql.DB
}

// NewPostgresTrialStore creates a PostgreSQL-backed TrialStore
func NewPostgresTrialStore(db *sql.DB) *PostgresTrialStore {
	return &PostgresTrialStore{db: db}
}

// Add inserts a new trial configuration
func (s *PostgresTrialStore) Add(ctx context.Context, cfg trial.Config) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM trial_configs WHERE trial_id = $1)
	`, cfg.TrialID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check trial existence: %w", err)
	}
	if exists {
		return fmt.Errorf("trial %s: %w", cfg.TrialID, ErrExists)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode trial %s: %w", cfg.TrialID, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trial_configs (trial_id, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, cfg.TrialID, data, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	return nil
}

// Get retrieves a trial configuration by trial ID
func (s *PostgresTrialStore) Get(ctx context.Context, trialID string) (*StoredTrial, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT config, created_at, updated_at
		FROM trial_configs
		WHERE trial_id = $1
	`, trialID)

	st, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial %s: %w", trialID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}
	return st, nil
}

// List returns every trial configuration ordered by trial ID
func (s *PostgresTrialStore) List(ctx context.Context) ([]*StoredTrial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT config, created_at, updated_at
		FROM trial_configs
		ORDER BY trial_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}
	defer rows.Close()

	var trials []*StoredTrial
	for rows.Next() {
		st, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trials = append(trials, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trials: %w", err)
	}
	return trials, nil
}

// Update replaces the configuration of an existing trial
func (s *PostgresTrialStore) Update(ctx context.Context, cfg trial.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode trial %s: %w", cfg.TrialID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE trial_configs
		SET config = $1, updated_at = $2
		WHERE trial_id = $3
	`, data, time.Now().UTC(), cfg.TrialID)
	if err != nil {
		return fmt.Errorf("failed to update trial: %w", err)
	}
	return expectOneRow(result, cfg.TrialID)
}

// Delete removes a trial configuration
func (s *PostgresTrialStore) Delete(ctx context.Context, trialID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM trial_configs WHERE trial_id = $1`, trialID)
	if err != nil {
		return fmt.Errorf("failed to delete trial: %w", err)
	}
	return expectOneRow(result, trialID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrial(row scanner) (*StoredTrial, error) {
	var (
		data []byte
		st   StoredTrial
	)
	if err := row.Scan(&data, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &st.Config); err != nil {
		return nil, fmt.Errorf("invalid stored configuration: %w", err)
	}
	return &st, nil
}

func expectOneRow(result sql.Result, trialID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trial %s: %w", trialID, ErrNotFound)
	}
	return nil
}
