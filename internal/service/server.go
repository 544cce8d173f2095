// File: internal/service/server.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/runner"
	"github.com/xkilldash9x/pagepilot/internal/store"
)

const maxBodyBytes = 1 << 20

// RunExecutor performs one run. *runner.Runner satisfies it.
type RunExecutor interface {
	Run(ctx context.Context, req runner.Request) (*schemas.RunReport, error)
}

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	URL       string               `json:"url"`
	Context   *schemas.PageContext `json:"context,omitempty"`
	Scenarios []schemas.Scenario   `json:"scenarios,omitempty"`
	Save      bool                 `json:"save,omitempty"`
}

// Server exposes runs and saved scenarios over HTTP.
type Server struct {
	cfg    config.ServiceConfig
	runs   RunExecutor
	store  schemas.ScenarioStore
	slots  *semaphore.Weighted
	logger *zap.Logger
}

// NewServer creates a Server. At most cfg.MaxConcurrentRuns runs execute at
// once; further requests wait for a slot.
func NewServer(cfg config.ServiceConfig, runs RunExecutor, st schemas.ScenarioStore, logger *zap.Logger) *Server {
	limit := int64(cfg.MaxConcurrentRuns)
	if limit < 1 {
		limit = 1
	}
	return &Server{
		cfg:    cfg,
		runs:   runs,
		store:  st,
		slots:  semaphore.NewWeighted(limit),
		logger: logger.Named("service"),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealthz)
	router.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", s.handleListScenarios)
			r.Post("/", s.handleCreateScenario)
			r.Put("/{id}", s.handleUpdateScenario)
		})
	})
	return router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP service listening.", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP service.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := runner.ValidateURL(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, "invalid url", err.Error())
		return
	}

	if err := s.slots.Acquire(r.Context(), 1); err != nil {
		respondError(w, http.StatusServiceUnavailable, "run not started", err.Error())
		return
	}
	defer s.slots.Release(1)

	ctx := r.Context()
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	report, err := s.runs.Run(ctx, runner.Request{URL: req.URL, Context: req.Context, Scenarios: req.Scenarios})
	if err != nil {
		status, title := classifyRunError(err)
		s.logger.Warn("Run failed.", zap.String("url", req.URL), zap.Int("status", status), zap.Error(err))
		respondError(w, status, title, err.Error())
		return
	}

	if req.Save && len(req.Scenarios) == 0 && len(report.TestPlan) > 0 {
		saved, err := SaveScenarios(ctx, s.store, req.URL, report.TestPlan, s.logger)
		if err != nil {
			// The run itself succeeded; report it with whatever was saved.
			s.logger.Error("Failed to save generated scenarios.", zap.Error(err))
		}
		report.Saved = saved
	}
	respondJSON(w, http.StatusOK, report)
}

// classifyRunError maps a run error to a status code and a short title.
func classifyRunError(err error) (int, string) {
	var (
		le *schemas.LaunchError
		ee *schemas.ExtractionError
		ge *schemas.GenerationError
	)
	switch {
	case errors.Is(err, schemas.ErrNoUsableForms):
		return http.StatusNotFound, "no usable forms"
	case errors.Is(err, schemas.ErrInvalidURL):
		return http.StatusBadRequest, "invalid url"
	case errors.As(err, &le):
		return http.StatusInternalServerError, "browser launch failed"
	case errors.As(err, &ee):
		return http.StatusInternalServerError, "page extraction failed"
	case errors.As(err, &ge):
		return http.StatusInternalServerError, "scenario generation failed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "run did not finish"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	var (
		list []schemas.SavedScenario
		err  error
	)
	if url := r.URL.Query().Get("url"); url != "" {
		list, err = s.store.GetSavedScenariosByURL(r.Context(), url)
	} else {
		list, err = s.store.GetAllSavedScenarios(r.Context())
	}
	if err != nil {
		s.logger.Error("Failed to list saved scenarios.", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	if list == nil {
		list = []schemas.SavedScenario{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var in schemas.SavedScenarioInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	saved, err := s.store.CreateSavedScenario(r.Context(), in)
	switch {
	case errors.Is(err, store.ErrInvalidScenario):
		respondError(w, http.StatusBadRequest, "invalid scenario", err.Error())
	case err != nil:
		s.logger.Error("Failed to create saved scenario.", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	case saved == nil:
		respondError(w, http.StatusConflict, "scenario already exists", duplicateDetails(in))
	default:
		respondJSON(w, http.StatusCreated, saved)
	}
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd schemas.SavedScenarioUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	saved, err := s.store.UpdateSavedScenario(r.Context(), id, upd)
	switch {
	case errors.Is(err, store.ErrInvalidScenario):
		respondError(w, http.StatusBadRequest, "invalid scenario", err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "scenario already exists", err.Error())
	case err != nil:
		s.logger.Error("Failed to update saved scenario.", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	case saved == nil:
		respondError(w, http.StatusNotFound, "scenario not found", fmt.Sprintf("no saved scenario with id %q", id))
	default:
		respondJSON(w, http.StatusOK, saved)
	}
}

func duplicateDetails(in schemas.SavedScenarioInput) string {
	if in.URL == "" {
		return fmt.Sprintf("a scenario titled %q or with the same user story is already saved without a url", in.Title)
	}
	return fmt.Sprintf("a scenario titled %q or with the same user story is already saved for %s", in.Title, in.URL)
}

// requestLogger logs each request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Request served.",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError sends an ErrorPayload.
func respondError(w http.ResponseWriter, status int, title, details string) {
	respondJSON(w, status, schemas.ErrorPayload{Error: title, Details: details})
}
