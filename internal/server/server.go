// Package server is the HTTP and WebSocket front-end of the push relay. It
// maps register, unregister, publish and connect requests onto a relay.Relay
// and runs one read/write pump pair per open connection.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/pushrelay/internal/metrics"
	"github.com/Tyrowin/pushrelay/internal/relay"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the base logger for requests and connections.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracerProvider sets the provider used by the tracing middleware.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/Tyrowin/pushrelay/internal/server"

// Server holds the relay, the router and the bookkeeping for open connections.
type Server struct {
	cfg      Config
	relay    *relay.Relay
	metrics  *metrics.Metrics
	log      *slog.Logger
	tracer   trace.Tracer
	origins  *originPolicy
	upgrader websocket.Upgrader
	router   *mux.Router

	// mu guards closing and every wg.Add so no pump starts once Shutdown
	// has begun waiting.
	mu      sync.Mutex
	closing bool
	// wg tracks the read and write pumps of every connection.
	wg sync.WaitGroup
}

// New creates a Server serving r with the given configuration.
func New(cfg Config, r *relay.Relay, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg.Sanitize(),
		relay:  r,
		log:    slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	reg := r.Registry()
	s.metrics = metrics.New(reg.Connected, reg.Len)
	s.origins = newOriginPolicy(s.cfg.AllowedOrigins, s.log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// reservePumps accounts for the two pumps of a new connection. It fails once
// Shutdown has started.
func (s *Server) reservePumps() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(2)
	return true
}

// Shutdown closes every client outbox, which makes each connection send a
// close frame and exit, then waits for the pumps or until timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info("initiating relay shutdown")
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.relay.Shutdown()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("relay shutdown completed")
		return nil
	case <-time.After(timeout):
		s.log.Warn("relay shutdown timeout reached; some connections may still be open")
		return context.DeadlineExceeded
	}
}
