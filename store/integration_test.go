//go:build integration
// +build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a migrated
// connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "trialmatch_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=trialmatch_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}
	return db, cleanup
}

func TestPostgresTrialStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.NewPostgresTrialStore(db)

	cfg := trial.Config{
		TrialID: "T-1",
		Acronym: "LUNG-1",
		Title:   "First line lung cancer",
		Open:    true,
		InclusionCriteria: []trial.CriterionConfig{{
			InclusionRule: "AND(IS_AT_LEAST_X_YEARS_OLD[18], HAS_MEASURABLE_DISEASE)",
			References:    []trial.CriterionReference{{ID: "I-01", Text: "Adults with measurable disease"}},
		}},
		Cohorts: []trial.CohortConfig{{CohortID: "A", Evaluable: true, Open: true, SlotsAvailable: true}},
	}

	if err := s.Add(ctx, cfg); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := s.Add(ctx, cfg); !errors.Is(err, store.ErrExists) {
		t.Errorf("duplicate Add() error = %v, want ErrExists", err)
	}

	got, err := s.Get(ctx, "T-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Config.InclusionCriteria[0].InclusionRule != cfg.InclusionCriteria[0].InclusionRule {
		t.Errorf("InclusionRule = %q", got.Config.InclusionCriteria[0].InclusionRule)
	}
	if len(got.Config.Cohorts) != 1 || got.Config.Cohorts[0].CohortID != "A" {
		t.Errorf("Cohorts = %+v", got.Config.Cohorts)
	}

	cfg.Open = false
	if err := s.Update(ctx, cfg); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	got, _ = s.Get(ctx, "T-1")
	if got.Config.Open {
		t.Error("Update() did not persist")
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}

	if err := s.Add(ctx, trial.Config{TrialID: "T-0", Acronym: "FIRST"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 || list[0].Config.TrialID != "T-0" {
		t.Errorf("List() = %+v", store.Configs(list))
	}

	if err := s.Delete(ctx, "T-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(ctx, "T-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "T-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresMatchStore_SaveAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.NewPostgresMatchStore(db)

	m := match.TreatmentMatch{
		PatientID:     "PAT-01",
		SampleID:      "SAMPLE-01",
		ReferenceDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		TrialMatches: []match.TrialMatch{{
			Identification:        trial.TrialIdentification{TrialID: "T-1", Acronym: "LUNG-1", Open: true},
			IsPotentiallyEligible: true,
		}},
	}

	runID, err := s.Save(ctx, m)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Get(ctx, runID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.PatientID != "PAT-01" || len(got.TrialMatches) != 1 || !got.TrialMatches[0].IsPotentiallyEligible {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}
