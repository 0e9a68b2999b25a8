package relay

import (
	"context"
	"fmt"

	"github.com/Tyrowin/pushrelay/internal/logging"
)

// Register creates a placeholder entry for username so that a later
// connection can attach to it. Registering a connected username leaves the
// live entry untouched. It always succeeds.
func (r *Relay) Register(_ context.Context, username string) {
	if r.registry.insertIfAbsent(username) {
		r.log.Info("client registered", logging.Username(username))
		return
	}
	r.log.Debug("client already connected; registration kept", logging.Username(username))
}

// Unregister removes the entry for username and closes its connection if one
// is open. It returns ErrClientNotFound when no entry exists.
func (r *Relay) Unregister(ctx context.Context, username string) error {
	c, ok := r.registry.Remove(username)
	if !ok {
		return fmt.Errorf("unregister %q: %w", username, ErrClientNotFound)
	}
	r.log.Info("client unregistered", logging.Username(username))

	if c.Outbox != nil {
		r.markOffline(ctx, username)
	}
	return nil
}
