package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wldstore/storefront/pkg/backend"
	"github.com/wldstore/storefront/pkg/cache"
)

// opsDeps is what the ops router reports on
type opsDeps struct {
	cache    *cache.Manager
	breaker  *backend.Breaker
	registry *prometheus.Registry
	log      *zap.Logger
}

// newOpsRouter serves probes, Prometheus metrics and a read-only cache view
func newOpsRouter(d opsDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(d.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// not ready while the backend breaker is open
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		state := d.breaker.State()
		code := http.StatusOK
		if state == backend.StateOpen {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"backend": state.String()})
	})

	if d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	r.Route("/cache", func(r chi.Router) {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			m := d.cache.Metrics()
			writeJSON(w, http.StatusOK, map[string]any{
				"hits":               m.Hits,
				"misses":             m.Misses,
				"total_requests":     m.TotalRequests,
				"hit_rate":           m.HitRate,
				"entries":            m.Entries,
				"stale_keys":         m.StaleKeys,
				"oldest_age_seconds": m.OldestAge.Seconds(),
			})
		})
		r.Get("/recommendations", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{"recommendations": d.cache.Recommendations()})
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("ops request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
