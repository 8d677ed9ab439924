package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/evaluators"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/rules"
	"github.com/liamcoop/trialmatch/store"
	"github.com/liamcoop/trialmatch/trial"
)

// Config is read from the environment
type Config struct {
	DatabaseURL   string
	Port          string
	ResourcesPath string
	TrialsPaths   []string
	ReferenceDate string
	Parallelism   int
	CacheTTL      time.Duration
}

func loadConfig() (Config, error) {
	cfg := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          os.Getenv("PORT"),
		ResourcesPath: os.Getenv("RESOURCES_PATH"),
		ReferenceDate: os.Getenv("REFERENCE_DATE"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	for _, path := range strings.Split(os.Getenv("TRIALS_PATH"), ",") {
		if path = strings.TrimSpace(path); path != "" {
			cfg.TrialsPaths = append(cfg.TrialsPaths, path)
		}
	}
	if v := os.Getenv("MATCH_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MATCH_PARALLELISM: %w", err)
		}
		cfg.Parallelism = n
	}
	if v := os.Getenv("TRIAL_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRIAL_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	return cfg, nil
}

type Server struct {
	db          *sql.DB
	catalog     *catalog.Catalog
	parallelism int
	trials      store.TrialStore
	matches     store.MatchStore
	router      *chi.Mux

	// rebuild is set when the reference date is live. It builds the engine
	// for a new day; see refreshReferenceDate.
	rebuild    func(now time.Time) (*rules.Engine, error)
	now        func() time.Time
	rolloverMu sync.Mutex
}

// NewServer builds the engine and stores described by cfg. Without a
// database the stores are kept in memory.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	refDate, err := rules.ParseReferenceDate(cfg.ReferenceDate, time.Now())
	if err != nil {
		return nil, err
	}
	engine, err := buildEngine(cfg.ResourcesPath, refDate)
	if err != nil {
		return nil, err
	}

	var (
		db      *sql.DB
		trials  store.TrialStore = store.NewInMemoryTrialStore()
		matches store.MatchStore = store.NewInMemoryMatchStore()
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		trials = store.NewPostgresTrialStore(db)
		matches = store.NewPostgresMatchStore(db)
	}
	trials = store.NewCachedTrialStore(trials, store.CacheConfig{TTL: cfg.CacheTTL})

	s, err := NewServerWithStores(ctx, engine, trials, matches, cfg.Parallelism, cfg.TrialsPaths...)
	if err != nil {
		return nil, err
	}
	s.db = db
	if refDate.IsLive() {
		s.rebuild = liveEngine(cfg.ResourcesPath)
	}
	return s, nil
}

func buildEngine(resourcesPath string, refDate rules.ReferenceDateProvider) (*rules.Engine, error) {
	res, err := rules.LoadResources(resourcesPath, refDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	engine, err := evaluators.NewEngine(res)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// liveEngine builds engines evaluating against the day of now
func liveEngine(resourcesPath string) func(now time.Time) (*rules.Engine, error) {
	return func(now time.Time) (*rules.Engine, error) {
		return buildEngine(resourcesPath, rules.LiveReferenceDate(now))
	}
}

// NewServerWithStores creates a server on the given engine and stores and
// loads the trial catalog
func NewServerWithStores(ctx context.Context, engine *rules.Engine, trials store.TrialStore, matches store.MatchStore, parallelism int, sources ...string) (*Server, error) {
	s := &Server{
		catalog:     catalog.New(engine, trials, sources...),
		parallelism: parallelism,
		trials:      trials,
		matches:     matches,
		now:         time.Now,
	}

	logger.Info("loading trial catalog", "sources", len(sources))
	if err := s.catalog.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load trials: %w", err)
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/rules", s.handleListRules)

	r.Post("/api/v1/match", s.handleMatch)
	r.Get("/api/v1/matches/{runId}", s.handleGetMatch)

	r.Route("/api/v1/trials", func(r chi.Router) {
		r.Get("/", s.handleListTrials)
		r.Post("/", s.handleCreateTrial)
		r.Post("/validate", s.handleValidateTrials)
		r.Get("/unmappable", s.handleUnmappable)

		r.Route("/{trialId}", func(r chi.Router) {
			r.Get("/", s.handleGetTrial)
			r.Put("/", s.handleUpdateTrial)
			r.Delete("/", s.handleDeleteTrial)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	s.refreshReferenceDate(r.Context())
	refDate := s.catalog.Engine().Resources().ReferenceDate
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:              "healthy",
		TrialsLoaded:        len(s.catalog.Trials()),
		UnmappableTrials:    len(s.catalog.Unmappable()),
		ReferenceDate:       refDate.Date().Format(rules.DateLayout),
		ReferenceDateIsLive: refDate.IsLive(),
		Stats:               logger.Snapshot(),
	})
}

// Rule listing handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: rules.Definitions()})
}

// Match handler
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Patient == nil {
		respondError(w, http.StatusBadRequest, "patient is required", nil)
		return
	}
	if req.Patient.PatientID == "" {
		respondError(w, http.StatusBadRequest, "patient.patientId is required", nil)
		return
	}

	s.refreshReferenceDate(r.Context())
	trials, err := s.catalog.Select(req.TrialIDs)
	if err != nil {
		respondError(w, http.StatusNotFound, "trial not found", err)
		return
	}

	matcher := match.NewMatcher(s.catalog.Engine(), s.parallelism)
	result, err := matcher.Match(r.Context(), req.Patient, trials)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "match failed", err)
		return
	}

	if s.matches != nil {
		runID, err := s.matches.Save(r.Context(), result)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to store match", err)
			return
		}
		w.Header().Set("X-Match-Run-Id", runID.String())
	}

	respondJSON(w, http.StatusOK, result)
}

// Stored match handler
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id", err)
		return
	}
	if s.matches == nil {
		respondError(w, http.StatusNotFound, "match run not found", nil)
		return
	}

	result, err := s.matches.Get(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "match run not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get match run", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Trial configuration validation handler. Nothing is stored.
func (s *Server) handleValidateTrials(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	db := trial.Ingest(req.Trials, s.catalog.Engine())
	ids := make([]string, 0, len(db.Trials))
	for _, t := range db.Trials {
		ids = append(ids, t.Identification.TrialID)
	}

	respondJSON(w, http.StatusOK, ValidationResponse{
		Valid:      db.IsValid(),
		Ingested:   ids,
		Unmappable: db.Unmappable,
	})
}

// Unmappable report handler
func (s *Server) handleUnmappable(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, UnmappableResponse{Unmappable: s.catalog.Unmappable()})
}

// List trials handler
func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	stored, err := s.trials.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list trials", err)
		return
	}
	if stored == nil {
		stored = []*store.StoredTrial{}
	}
	respondJSON(w, http.StatusOK, TrialsListResponse{Trials: stored})
}

// Create trial handler
func (s *Server) handleCreateTrial(w http.ResponseWriter, r *http.Request) {
	var cfg trial.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if cfg.TrialID == "" {
		cfg.TrialID = uuid.NewString()
	}

	if !s.checkConfig(w, cfg) {
		return
	}
	// Trials loaded from configuration files are not in the store
	if s.catalog.Contains(cfg.TrialID) {
		respondError(w, http.StatusConflict, "trial already exists",
			fmt.Errorf("trial %s is already loaded", cfg.TrialID))
		return
	}

	if err := s.trials.Add(r.Context(), cfg); err != nil {
		if errors.Is(err, store.ErrExists) {
			respondError(w, http.StatusConflict, "trial already exists", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to add trial", err)
		return
	}

	if !s.reload(w, r, func(ctx context.Context) error {
		return s.trials.Delete(ctx, cfg.TrialID)
	}) {
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

// Get trial handler
func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	stored, err := s.trials.Get(r.Context(), chi.URLParam(r, "trialId"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "trial not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get trial", err)
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

// Update trial handler
func (s *Server) handleUpdateTrial(w http.ResponseWriter, r *http.Request) {
	trialID := chi.URLParam(r, "trialId")

	var cfg trial.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if cfg.TrialID != "" && cfg.TrialID != trialID {
		respondError(w, http.StatusBadRequest, "trialId does not match the path", nil)
		return
	}
	cfg.TrialID = trialID

	if !s.checkConfig(w, cfg) {
		return
	}

	previous, ok := s.storedTrial(w, r, trialID)
	if !ok {
		return
	}
	if err := s.trials.Update(r.Context(), cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "trial not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update trial", err)
		return
	}

	if !s.reload(w, r, func(ctx context.Context) error {
		return s.trials.Update(ctx, previous.Config)
	}) {
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// Delete trial handler
func (s *Server) handleDeleteTrial(w http.ResponseWriter, r *http.Request) {
	trialID := chi.URLParam(r, "trialId")
	previous, ok := s.storedTrial(w, r, trialID)
	if !ok {
		return
	}
	if err := s.trials.Delete(r.Context(), trialID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "trial not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete trial", err)
		return
	}

	if !s.reload(w, r, func(ctx context.Context) error {
		return s.trials.Add(ctx, previous.Config)
	}) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkConfig rejects configurations that would not ingest completely
func (s *Server) checkConfig(w http.ResponseWriter, cfg trial.Config) bool {
	if err := trial.ValidateConfig(cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid trial configuration", err)
		return false
	}
	db := trial.Ingest([]trial.Config{cfg}, s.catalog.Engine())
	if !db.IsValid() {
		respondJSON(w, http.StatusBadRequest, ValidationResponse{
			Valid:      false,
			Ingested:   []string{},
			Unmappable: db.Unmappable,
		})
		logger.HTTPStatus(http.StatusBadRequest)
		return false
	}
	return true
}

// refreshReferenceDate moves a live reference date to the current day.
// Built functions close over the date, so a new engine is built and the
// catalog reloaded with it. On failure the previous day stays in use.
func (s *Server) refreshReferenceDate(ctx context.Context) {
	if s.rebuild == nil {
		return
	}
	today := rules.LiveReferenceDate(s.now()).Date()
	if !s.catalog.Engine().Resources().ReferenceDate.Date().Before(today) {
		return
	}

	s.rolloverMu.Lock()
	defer s.rolloverMu.Unlock()
	if !s.catalog.Engine().Resources().ReferenceDate.Date().Before(today) {
		return
	}

	engine, err := s.rebuild(today)
	if err != nil {
		logger.Error("failed to build engine for new reference date", "error", err)
		return
	}
	if err := s.catalog.LoadWith(ctx, engine); err != nil {
		logger.Error("failed to reload trials for new reference date", "error", err)
		return
	}
	logger.Info("reference date advanced", "referenceDate", today.Format(rules.DateLayout))
}

// storedTrial fetches a stored trial, responding 404 or 500 on failure
func (s *Server) storedTrial(w http.ResponseWriter, r *http.Request, trialID string) (*store.StoredTrial, bool) {
	stored, err := s.trials.Get(r.Context(), trialID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "trial not found", err)
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get trial", err)
		return nil, false
	}
	return stored, true
}

// reload reloads the catalog after a store mutation. When the reload fails
// the catalog keeps its previous trials and undo reverts the mutation so
// the store matches the catalog again.
func (s *Server) reload(w http.ResponseWriter, r *http.Request, undo func(context.Context) error) bool {
	err := s.catalog.Load(r.Context())
	if err == nil {
		return true
	}
	if undoErr := undo(context.WithoutCancel(r.Context())); undoErr != nil {
		logger.Error("failed to revert trial change", "error", undoErr)
	}
	respondError(w, http.StatusInternalServerError, "failed to reload trials", err)
	return false
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	logger.HTTPStatus(status)
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error(message, "error", err)
	}
	respondJSON(w, status, response)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read .env", "error", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "trials", len(server.catalog.Trials()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
