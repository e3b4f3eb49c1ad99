package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/restmodel/adapters/metrics"
	"github.com/artpar/restmodel/core/fault"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewLoggingMiddleware logs every request except health checks and
// metrics scrapes.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// requireAPIKey rejects requests whose key header does not match the
// configured hash.
func (c *Channel) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(c.cfg.APIKeyHeader)

		reason := ""
		switch {
		case key == "":
			reason = "missing"
		case c.cfg.Hasher == nil || !c.cfg.Hasher.Compare(c.cfg.APIKeyHash, key):
			reason = "invalid"
		}

		if reason != "" {
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.AuthFailures.WithLabelValues(reason).Inc()
			}
			c.writeFault(w, fault.New(fault.KindUnauthorized, "%s API key", reason))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func inFlight(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
