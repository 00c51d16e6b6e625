package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appinsights "github.com/bryanwahyu/insight-relay/internal/application/insights"
	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
	"github.com/bryanwahyu/insight-relay/internal/logger"
	"github.com/bryanwahyu/insight-relay/internal/middleware"
)

const maxBodyBytes = 1 << 20

// Options configures the ambient pieces of the router.
type Options struct {
	AllowedOrigins []string
	APIKeys        []string
	RateLimiter    *middleware.RateLimiter
	HealthCheckers map[string]middleware.HealthChecker
	Readiness      *middleware.Readiness
	Logger         *zap.Logger
}

type Router struct {
	insightsSvc *appinsights.Service
	log         *zap.Logger
}

func NewRouter(insightsSvc *appinsights.Service, opts Options) http.Handler {
	log := logger.OrNop(opts.Logger)
	r := &Router{insightsSvc: insightsSvc, log: log}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	readiness := opts.Readiness
	if readiness == nil {
		readiness = &middleware.Readiness{}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Metrics)
	mux.Use(middleware.Logging(log))
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders: []string{"X-Run-ID", "X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/public/test-connection", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("CONNECTED"))
	})

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", readiness.Handler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/crewai", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.With(r.rateLimit(opts.RateLimiter)).Post("/", r.wrap(r.handleAnalyze))
		rt.Get("/runs", r.wrap(r.handleListRuns))
		rt.Get("/runs/{id}", r.wrap(r.handleGetRun))
	})

	return mux
}

func (r *Router) rateLimit(l *middleware.RateLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(l)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client errors so wrap answers 400.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= 500 {
				// upstream bodies stay in the log, callers get the status text
				r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Int("status", status), zap.Error(err))
				http.Error(w, http.StatusText(status), status)
				return
			}
			http.Error(w, err.Error(), status)
		}
	}
}

func statusFor(err error) int {
	var (
		br       badRequest
		upErr    *domain.UpstreamError
		jobErr   *domain.JobFailedError
		limitErr *domain.PollLimitError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound), errors.Is(err, appinsights.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.As(err, &limitErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upErr), errors.As(err, &jobErr),
		errors.Is(err, domain.ErrMissingJobHandle), errors.Is(err, domain.ErrMissingResult),
		errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// POST /crewai
// Body: {"product": "<name>", "company": "<name>"}
// Blocks until the crew finishes, then answers {"status":"SUCCESS","data":<result>}.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body domain.Request
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return badRequest{fmt.Errorf("invalid JSON body: %w", err)}
	}

	res, err := r.insightsSvc.RunAnalysis(req.Context(), body)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Run-ID", res.RunID)
	return json.NewEncoder(w).Encode(res)
}

// GET /crewai/runs?page=&page_size=
func (r *Router) handleListRuns(w http.ResponseWriter, req *http.Request) error {
	page, size := middleware.Page(req.URL.Query())

	list, err := r.insightsSvc.ListRuns(req.Context(), page, size)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"runs":      list,
		"page":      page,
		"page_size": size,
	})
}

// GET /crewai/runs/{id}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRunID(id); err != nil {
		return badRequest{err}
	}

	run, err := r.insightsSvc.GetRun(req.Context(), domain.RunID(id))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(run)
}
