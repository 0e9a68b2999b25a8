package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Tyrowin/pushrelay/internal/logging"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Presence mirrors connection state to an external store.
type Presence interface {
	MarkOnline(ctx context.Context, username string) error
	MarkOffline(ctx context.Context, username string) error
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger used for registry events.
func WithLogger(log *slog.Logger) Option {
	return func(r *Relay) {
		if log != nil {
			r.log = log
		}
	}
}

// WithPresence mirrors attach and detach events to p.
func WithPresence(p Presence) Option {
	return func(r *Relay) {
		r.presence = p
	}
}

// WithTracerProvider sets the provider used for publish spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Relay) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/Tyrowin/pushrelay/internal/relay"

// Relay ties the registry to the registration and publish operations.
type Relay struct {
	registry *Registry
	log      *slog.Logger
	presence Presence
	tracer   trace.Tracer

	// mu orders Attach against Shutdown: once closed is set no outbox
	// enters the registry.
	mu     sync.RWMutex
	closed bool

	// presenceMu serializes presence writes so they land in registry order.
	presenceMu sync.Mutex
}

// New creates a Relay with an empty registry.
func New(opts ...Option) *Relay {
	r := &Relay{
		registry: NewRegistry(),
		log:      slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry exposes the underlying registry.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Attach creates the outbox for a freshly opened connection and stores it
// under username, replacing any placeholder or older connection. After
// Shutdown the returned outbox is already closed and never stored.
func (r *Relay) Attach(ctx context.Context, username string) *Outbox {
	outbox := NewOutbox()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		outbox.Close()
		r.log.Debug("relay shut down; connection not attached", logging.Username(username))
		return outbox
	}
	r.registry.Upsert(username, outbox)
	r.mu.RUnlock()

	r.log.Info("client connected", logging.Username(username), slog.Int("connected", r.registry.Connected()))
	r.markOnline(ctx, username, outbox)
	return outbox
}

// Detach tears down the registry side of a connection. It closes outbox and
// removes the entry only if it still belongs to this connection.
func (r *Relay) Detach(ctx context.Context, username string, outbox *Outbox) {
	outbox.Close()
	if !r.registry.RemoveIf(username, outbox) {
		r.log.Debug("client entry already replaced or removed", logging.Username(username))
		return
	}
	r.log.Info("client disconnected", logging.Username(username), slog.Int("connected", r.registry.Connected()))
	r.markOffline(ctx, username)
}

// markOnline records username as online while outbox still owns its entry.
// A connection detached before this runs leaves no stale online mark.
func (r *Relay) markOnline(ctx context.Context, username string, outbox *Outbox) {
	if r.presence == nil {
		return
	}
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	if c, ok := r.registry.Lookup(username); !ok || c.Outbox != outbox {
		return
	}
	if err := r.presence.MarkOnline(ctx, username); err != nil {
		r.log.Warn("presence update failed", logging.Username(username), logging.Err(err))
	}
}

// markOffline records username as offline unless a newer connection has
// already taken the entry.
func (r *Relay) markOffline(ctx context.Context, username string) {
	if r.presence == nil {
		return
	}
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	if c, ok := r.registry.Lookup(username); ok && c.Connected() {
		return
	}
	if err := r.presence.MarkOffline(ctx, username); err != nil {
		r.log.Warn("presence update failed", logging.Username(username), logging.Err(err))
	}
}

// Shutdown closes every live outbox so that all connections wind down.
// Connections attached afterwards are closed immediately.
func (r *Relay) Shutdown() int {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	closed := r.registry.CloseAll()
	r.log.Info("closed client outboxes", slog.Int("count", closed))
	return closed
}
