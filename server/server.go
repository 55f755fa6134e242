// Package server exposes the orchestration over HTTP: one request runs one
// input to completion, plus direct tool command execution and polling.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/eventbus"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/telemetry"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/registry"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
	"github.com/rvndrmann/mannmediaagency-sub000/session"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

const (
	// DefaultBodyLimit caps request bodies.
	DefaultBodyLimit = 1 << 20

	maxSeenMessages = 4096
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Sessions persists conversations across requests (default in-memory).
	Sessions core.SessionStore
	// Credits seeds the balance of a run when the request omits it.
	Credits core.CreditStore
	// StartAgent begins runs whose request names no agentType (default main).
	StartAgent core.AgentType
	// DefaultCredits is used when neither the request nor Credits has a balance.
	DefaultCredits int
	// Bus publishes run events when set.
	Bus *eventbus.Bus
	// Metrics is handed to every runner.
	Metrics *telemetry.Metrics
	// RunnerOptions are applied to every per-request runner.
	RunnerOptions []func(o *runner.Options)
	ServiceName   string
	BodyLimit     int64
	Timeout       time.Duration
	Logger        logging.Logger
}

// Server is the HTTP surface. It holds no orchestration state of its own
// beyond the per-group in-flight guard and the processed message ids.
type Server struct {
	registry *registry.Registry
	executor *tool.Executor
	opts     Options
	logger   *logging.StructuredLogger

	mu       sync.Mutex
	inflight map[string]struct{}
	seen     map[string]struct{}
}

// New creates a Server over an initialized registry. executor may be nil,
// in which case the command routes answer 503.
func New(reg *registry.Registry, executor *tool.Executor, optFns ...func(o *Options)) *Server {
	opts := Options{
		StartAgent:  core.AgentTypeMain,
		ServiceName: "mediaagent",
		BodyLimit:   DefaultBodyLimit,
		Timeout:     2 * time.Minute,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	return &Server{
		registry: reg,
		executor: executor,
		opts:     opts,
		logger:   logging.NewStructuredLogger(opts.Logger).WithComponent("server"),
		inflight: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Handler returns the routed, instrumented http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.opts.Timeout))
	r.Use(s.accessLog)

	r.Get("/healthz", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/agents", s.listAgents)
		r.Post("/runs", s.createRun)
		r.Post("/commands", s.executeCommand)
		r.Get("/commands/{id}", s.commandStatus)
	})

	return otelhttp.NewHandler(r, s.opts.ServiceName)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

// acquire marks a group as running; false when a run is already in flight.
func (s *Server) acquire(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[groupID]; busy {
		return false
	}

	s.inflight[groupID] = struct{}{}

	return true
}

func (s *Server) release(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, groupID)
}

// markSeen records a message id and reports whether it was new.
func (s *Server) markSeen(groupID, messageID string) bool {
	if messageID == "" {
		return true
	}

	key := groupID + "/" + messageID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}

	if len(s.seen) >= maxSeenMessages {
		s.seen = make(map[string]struct{})
	}

	s.seen[key] = struct{}{}

	return true
}
