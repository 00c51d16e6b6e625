package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the run history database
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler runs every checker concurrently and answers 503 if any fails.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Checks:    make(map[string]CheckStatus, len(checkers)),
		}

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for name, checker := range checkers {
			wg.Add(1)
			go func(name string, checker HealthChecker) {
				defer wg.Done()
				st := CheckStatus{Status: "healthy"}
				if err := checker.Check(ctx); err != nil {
					st = CheckStatus{Status: "unhealthy", Message: err.Error()}
				}
				mu.Lock()
				health.Checks[name] = st
				if st.Status == "unhealthy" {
					health.Status = "unhealthy"
				}
				mu.Unlock()
			}(name, checker)
		}
		wg.Wait()

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, health)
	}
}

// Readiness flips to not-ready once shutdown starts so load balancers stop
// routing new analyses here while in-flight polls drain.
type Readiness struct {
	draining atomic.Bool
}

func (rd *Readiness) Drain() { rd.draining.Store(true) }

func (rd *Readiness) Handler(w http.ResponseWriter, r *http.Request) {
	if rd.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "draining",
			"timestamp": time.Now(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessHandler creates a liveness check handler (simplest check)
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
