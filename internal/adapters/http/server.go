package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/compiler"
	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/aretw0/stepgraph/pkg/builder"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxWorkflowBytes caps the size of a posted workflow document.
const MaxWorkflowBytes = 1 << 20

// Engine is the part of the stepgraph facade the API needs.
type Engine interface {
	Validate(wf *domain.Workflow) *builder.Result
	Run(ctx context.Context, wf *domain.Workflow, opts stepgraph.RunOptions) (*domain.Report, error)
	Report(ctx context.Context, runID string) (*domain.Report, error)
	Runs(ctx context.Context) ([]string, error)
}

// Server serves the run API over an Engine.
type Server struct {
	Engine  Engine
	parser  *compiler.Parser
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		parser: compiler.NewParser(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/validate", s.Validate)
	r.Post("/graph", s.Graph)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.CreateRun)
		r.Get("/{runID}", s.GetRun)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "stepgraph-http",
		"version": strings.TrimSpace(stepgraph.Version),
	})
}

type validation struct {
	Valid    bool     `json:"valid"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate handles POST /validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.decodeWorkflow(w, r)
	if !ok {
		return
	}
	res := s.Engine.Validate(wf)
	writeJSON(w, http.StatusOK, validation{
		Valid:    res.OK(),
		Nodes:    res.Graph.Len(),
		Edges:    res.Graph.EdgeCount(),
		Errors:   res.Messages(),
		Warnings: append([]string{}, res.Warnings...),
	})
}

// Graph handles POST /graph and answers with a Mermaid flowchart.
// The number of rejected steps is reported in the X-Build-Errors header.
func (s *Server) Graph(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.decodeWorkflow(w, r)
	if !ok {
		return
	}
	res := s.Engine.Validate(wf)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Build-Errors", strconv.Itoa(len(res.Errors)))
	_, _ = io.WriteString(w, graph.GenerateMermaid(res.Graph, nil))
}

// CreateRun handles POST /runs. Query parameters: fit=true, run_id=<id>.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.decodeWorkflow(w, r)
	if !ok {
		return
	}
	opts := stepgraph.RunOptions{RunID: r.URL.Query().Get("run_id")}
	if v := r.URL.Query().Get("fit"); v != "" {
		fit, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fit parameter")
			return
		}
		opts.Fit = fit
	}

	report, err := s.Engine.Run(r.Context(), wf, opts)
	if err != nil && report == nil {
		s.logger.Error("run failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err != nil {
		// The run finished but could not be persisted.
		s.logger.Warn("run not persisted", "err", err, "run_id", report.RunID)
	}
	w.Header().Set("Location", "/runs/"+report.RunID)
	writeJSON(w, http.StatusCreated, report)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Runs(r.Context())
	if err != nil {
		s.logger.Error("list runs failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

// GetRun handles GET /runs/{runID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.Engine.Report(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) decodeWorkflow(w http.ResponseWriter, r *http.Request) (*domain.Workflow, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWorkflowBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "workflow too large")
		return nil, false
	}
	wf, err := s.parser.Parse(data, formatOf(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return wf, true
}

// formatOf picks the workflow decoder from Content-Type, JSON by default.
func formatOf(r *http.Request) compiler.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(mt, "yaml"):
		return compiler.FormatYAML
	case strings.Contains(mt, "toml"):
		return compiler.FormatTOML
	}
	return compiler.FormatJSON
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLockAcquire):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDriverUnavailable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
