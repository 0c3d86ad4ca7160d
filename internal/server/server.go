package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tongue/fotbroms/internal/config"
	"github.com/tongue/fotbroms/pkg/live"
	"github.com/tongue/fotbroms/pkg/middleware"
	"github.com/tongue/fotbroms/pkg/upload"
)

const (
	sessionName = "fotbroms"
	keyPath     = "path"
	keyName     = "name"
)

// Options configures a Server.
type Options struct {
	// Config is the loaded configuration. The store itself is passed
	// separately; see OpenStore.
	Config *config.Config

	// Store receives the uploads.
	Store upload.Store

	// Registry collects the server metrics and is served on /metrics. If
	// nil a fresh registry with the Go and process collectors is used.
	Registry *prometheus.Registry

	// Tracer overrides the global tracer provider for request spans.
	Tracer trace.Tracer

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// LastUpload is the body of GET /last.
type LastUpload struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// Server is the upload server: the PUT endpoint the widget targets plus
// the feed, metrics and file routes around it.
type Server struct {
	config   *config.Config
	store    upload.Store
	hub      *live.Hub
	metrics  *middleware.Metrics
	registry *prometheus.Registry
	sessions sessions.Store
	logger   *slog.Logger
	router   chi.Router
}

// New creates a server and its routes.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		config:   cfg,
		store:    opts.Store,
		metrics:  middleware.NewMetrics(middleware.WithRegistry(registry)),
		registry: registry,
		sessions: newSessionStore(cfg.Server.SessionSecret),
		logger:   logger.With("component", "server"),
	}

	hubConfig := live.DefaultConfig()
	hubConfig.Logger = logger
	hubConfig.OnSubscribers = s.metrics.SetLiveSubscribers
	s.hub = live.NewHub(hubConfig)

	s.router = s.routes(opts.Tracer)
	return s
}

func newSessionStore(secret string) *sessions.CookieStore {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) routes(tracer trace.Tracer) chi.Router {
	otelOpts := []middleware.OTelOption{
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != live.DefaultPath
		}),
	}
	if tracer != nil {
		otelOpts = append(otelOpts, middleware.WithTracer(tracer))
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry(otelOpts...))
	r.Use(s.metrics.Handler)

	uploadConfig := &upload.Config{
		MaxFileSize: s.config.Server.MaxFileSize,
		Accepts:     s.config.ServerAccepts(),
		OnStored:    s.stored,
		OnRejected: func(_ *http.Request, status int, _ error) {
			s.metrics.RecordRejected(status)
		},
		Logger: s.logger,
	}

	r.Get("/", s.index)
	r.Put("/", upload.HandlerWithConfig(s.store, uploadConfig).ServeHTTP)
	r.Post("/", upload.FormHandlerWithConfig(s.store, uploadConfig, upload.DefaultFormField).ServeHTTP)
	r.Get("/last", s.last)
	r.Method(http.MethodGet, live.DefaultPath, s.hub)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	fileServer := upload.FileServer(s.store, s.logger)
	filesRoute := "/" + s.config.Storage.Prefix + "*"
	r.Get(filesRoute, fileServer.ServeHTTP)
	r.Head(filesRoute, fileServer.ServeHTTP)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live feed hub.
func (s *Server) Hub() *live.Hub {
	return s.hub
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *middleware.Metrics {
	return s.metrics
}

// stored remembers the upload in the client's session, counts it and
// announces it on the live feed.
func (s *Server) stored(w http.ResponseWriter, r *http.Request, f *upload.File) {
	s.metrics.RecordStored(f.Size)
	s.hub.Publish(live.Notice{
		Path:        f.Path,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        f.Size,
		StoredAt:    f.StoredAt,
	})

	// A broken cookie from an old key yields a fresh session and an error;
	// the fresh session is still usable.
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		s.logger.Debug("discarding invalid session", "error", err)
	}
	session.Values[keyPath] = f.Path
	session.Values[keyName] = f.Filename
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("save session", "error", err)
	}
}

// last returns the most recent upload of this client.
func (s *Server) last(w http.ResponseWriter, r *http.Request) {
	up, ok := s.lastUpload(r)
	if !ok {
		http.Error(w, "no upload yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(up)
}

func (s *Server) lastUpload(r *http.Request) (LastUpload, bool) {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return LastUpload{}, false
	}
	path, _ := session.Values[keyPath].(string)
	name, _ := session.Values[keyName].(string)
	if path == "" {
		return LastUpload{}, false
	}
	return LastUpload{Path: path, Filename: name}, true
}
