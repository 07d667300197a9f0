// Package api exposes the lead collection, scans and audits over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/config"
	"github.com/sells-group/leadhunter/internal/discovery"
	"github.com/sells-group/leadhunter/internal/lifecycle"
	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/resilience"
	"github.com/sells-group/leadhunter/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Scanner runs lead scans and audit batches.
type Scanner interface {
	Places(ctx context.Context, req discovery.PlacesRequest) (*discovery.Result, error)
	Registry(ctx context.Context, req discovery.RegistryRequest) (*discovery.Result, error)
	AuditBatch(ctx context.Context, ids []string) (*discovery.Result, error)
}

// Server serves the HTTP API.
type Server struct {
	tracker *lifecycle.Tracker
	mapper  *mapper.Mapper
	scanner Scanner
	auditor discovery.SiteAuditor
	keys    map[string]config.KeyStatus
	origins []string
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithScanner enables the scan and batch audit endpoints.
func WithScanner(s Scanner) Option {
	return func(srv *Server) { srv.scanner = s }
}

// WithAuditor enables the audit endpoints.
func WithAuditor(a discovery.SiteAuditor) Option {
	return func(srv *Server) { srv.auditor = a }
}

// WithKeyStatus sets the API key report shown by the health endpoint.
func WithKeyStatus(keys map[string]config.KeyStatus) Option {
	return func(srv *Server) { srv.keys = keys }
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to any origin.
func WithCORSOrigins(origins []string) Option {
	return func(srv *Server) { srv.origins = origins }
}

// WithMapper overrides the mapper used for created leads.
func WithMapper(m *mapper.Mapper) Option {
	return func(srv *Server) { srv.mapper = m }
}

// WithClock overrides the time source used by stats and exports.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) { srv.now = now }
}

// New creates a Server over tracker.
func New(tracker *lifecycle.Tracker, opts ...Option) *Server {
	s := &Server{
		tracker: tracker,
		mapper:  mapper.New(),
		origins: []string{"*"},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/stats", s.stats)
	r.Get("/export.xlsx", s.exportXLSX)
	r.Post("/audit", s.auditURL)

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", s.listLeads)
		r.Post("/", s.createLead)
		r.Post("/audit", s.auditLeads)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getLead)
			r.Patch("/", s.updateLead)
			r.Delete("/", s.deleteLead)
			r.Patch("/status", s.setStatus)
			r.Patch("/website", s.setWebsite)
			r.Post("/notes", s.addNote)
			r.Post("/audit", s.auditLead)
		})
	})

	r.Route("/scan", func(r chi.Router) {
		r.Post("/places", s.scanPlaces)
		r.Post("/registry", s.scanRegistry)
	})
	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// errUnavailable marks endpoints whose collaborator is not configured.
var errUnavailable = eris.New("feature not configured")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case model.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	case model.IsValidation(err), model.IsMapping(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrDuplicate):
		status, msg = http.StatusConflict, "lead already exists"
	case errors.Is(err, errUnavailable):
		status, msg = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, resilience.ErrCircuitOpen):
		status, msg = http.StatusServiceUnavailable, "upstream temporarily unavailable"
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: msg})
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}
