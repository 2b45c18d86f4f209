package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/trendhealth/internal/api/handlers"
	"github.com/wonny/trendhealth/pkg/database"
	"github.com/wonny/trendhealth/pkg/logger"
)

// mirrorCheckTimeout bounds the Postgres ping of /health
const mirrorCheckTimeout = 2 * time.Second

// MirrorChecker reports the health of the Postgres history mirror (database.DB)
type MirrorChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// NewRouter creates and configures the HTTP router.
// mirror is nil when DATABASE_URL is not set.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(historyHandler *handlers.HistoryHandler, cacheHandler *handlers.CacheHandler, mirror MirrorChecker, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	log = log.Module("api")

	// Health check
	r.HandleFunc("/health", healthCheckHandler(mirror, log)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Read-only artifact endpoints
	api.HandleFunc("/universes", historyHandler.ListUniverses).Methods("GET")
	api.HandleFunc("/history/{universe}", historyHandler.GetHistory).Methods("GET")
	api.HandleFunc("/history/{universe}/latest", historyHandler.GetLatest).Methods("GET")
	api.HandleFunc("/cache/{symbol}", cacheHandler.GetStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
// A configured mirror that fails its ping turns the status to degraded (503).
func healthCheckHandler(mirror MirrorChecker, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "trendhealth-api",
		}
		code := http.StatusOK

		if mirror != nil {
			ctx, cancel := context.WithTimeout(r.Context(), mirrorCheckTimeout)
			status, err := mirror.HealthCheck(ctx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("Postgres mirror health check failed")
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
			body["mirror"] = status
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
