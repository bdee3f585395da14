package network

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MRamiBalles/reactorsim/internal/events"
	"github.com/MRamiBalles/reactorsim/internal/platform/logger"
	"github.com/MRamiBalles/reactorsim/internal/platform/metrics"
)

// NewRouter wires the observer API:
//
//	GET /health
//	GET /ws                   live turn reports and events
//	GET /api/state            latest turn report
//	GET /api/history          session log, filterable
//	GET /api/history/stats    per-type counts
//	GET /metrics              JSON metrics
//	GET /metrics/prom         Prometheus text metrics
func NewRouter(hub *Hub, eventLog *events.EventLog, log *logger.Logger) http.Handler {
	history := NewHistoryHandler(eventLog, log)

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", hub.ServeWs)

	r.Get("/api/state", func(w http.ResponseWriter, r *http.Request) {
		report, ok := hub.Latest()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no turn played yet"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
	r.Get("/api/history", history.HandleHistory)
	r.Get("/api/history/stats", history.HandleStats)

	r.Get("/metrics", metrics.Handler())
	r.Get("/metrics/prom", metrics.PrometheusHandler())
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
