// Package http exposes the router over HTTP with chi.
//
// Every mounted resource path is handed to route.Router.Serve. The channel
// only translates between HTTP and route.Request/route.Response; status
// codes and error bodies come from the router.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/artpar/restmodel/adapters/metrics"
	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/openapi"
	"github.com/artpar/restmodel/core/route"
	"github.com/artpar/restmodel/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// Config contains the channel's collaborators.
type Config struct {
	Router *route.Router
	Logger zerolog.Logger

	// Faults translates transport-level errors. Defaults to fault.Default().
	Faults *fault.Table

	// Metrics enables /metrics and request gauges when set.
	Metrics     *metrics.Collector
	MetricsPath string

	// OpenAPI enables /openapi.json and /swagger when set.
	OpenAPI func() *openapi.Spec

	// APIKeyHash enables the API key guard on resource paths.
	APIKeyHash   []byte
	APIKeyHeader string
	Hasher       ports.Hasher

	RequestTimeout time.Duration
}

// Channel is the HTTP transport.
type Channel struct {
	router chi.Router
	cfg    Config
}

// New builds the chi router.
func New(cfg Config) *Channel {
	if cfg.Faults == nil {
		cfg.Faults = fault.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}

	c := &Channel{router: chi.NewRouter(), cfg: cfg}
	r := c.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.Metrics != nil {
		r.Use(inFlight(cfg.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	if cfg.OpenAPI != nil {
		r.Get("/openapi.json", c.handleOpenAPI)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/openapi.json"),
		))
	}

	r.Group(func(r chi.Router) {
		if len(cfg.APIKeyHash) > 0 {
			r.Use(c.requireAPIKey)
		}
		for _, prefix := range cfg.Router.Prefixes() {
			if prefix == "/" {
				r.Handle("/*", http.HandlerFunc(c.serve))
				continue
			}
			r.Handle(prefix, http.HandlerFunc(c.serve))
			r.Handle(prefix+"/*", http.HandlerFunc(c.serve))
		}
	})

	// chi routes on the raw path while serve resolves the decoded one, so
	// an encoded path can miss the group above and land here.
	var fallback http.Handler = http.HandlerFunc(c.serve)
	if len(cfg.APIKeyHash) > 0 {
		fallback = c.requireAPIKey(fallback)
	}
	r.NotFound(fallback.ServeHTTP)
	r.MethodNotAllowed(fallback.ServeHTTP)

	return c
}

// Handler returns the HTTP handler.
func (c *Channel) Handler() http.Handler {
	return c.router
}

// serve hands the request to the router.
func (c *Channel) serve(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		c.writeFault(w, err)
		return
	}

	resp := c.cfg.Router.Serve(r.Context(), route.Request{
		Verb:  r.Method,
		Path:  r.URL.Path,
		Query: r.URL.Query(),
		Body:  body,
	})

	if resp.Status >= http.StatusInternalServerError && resp.Status != http.StatusNotImplemented {
		c.cfg.Logger.Error().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", resp.Status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}

	writeJSON(w, resp.Status, resp.Body)
}

// decodeBody reads a JSON object body. An empty body is nil.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fault.New(fault.KindValidation, "request body exceeds %d bytes", MaxBodyBytes)
		}
		return nil, fault.Wrap(fault.KindValidation, err, "read request body")
	}
	if len(data) == 0 {
		return nil, nil
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fault.Wrap(fault.KindValidation, err, "request body must be a JSON object")
	}
	return body, nil
}

func (c *Channel) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := openapi.Publish(c.cfg.OpenAPI())
	if err != nil {
		c.writeFault(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (c *Channel) writeFault(w http.ResponseWriter, err error) {
	status, body := c.cfg.Faults.Translate(err)
	writeJSON(w, status, body)
}

// writeJSON writes body as JSON. A nil body writes only the status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil || status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
