package relay

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// Message is a payload addressed to a list of usernames. An empty list
// broadcasts to every connected client.
type Message struct {
	Payload   string
	Usernames []string
}

// Broadcast reports whether the message has no explicit targets.
func (m Message) Broadcast() bool {
	return len(m.Usernames) == 0
}

// Publish enqueues the message onto the outbox of every matching connected
// client and returns how many outboxes accepted it. Unknown usernames and
// clients without a connection are skipped. Publish never waits for delivery.
func (r *Relay) Publish(ctx context.Context, msg Message) int {
	_, span := r.tracer.Start(ctx, "relay.publish")
	defer span.End()

	targets := r.resolve(msg)
	payload := []byte(msg.Payload)

	delivered := 0
	for _, c := range targets {
		if c.Outbox == nil {
			continue
		}
		if c.Outbox.Push(payload) {
			delivered++
		}
	}

	span.SetAttributes(
		attribute.Bool("relay.broadcast", msg.Broadcast()),
		attribute.Int("relay.targets", len(targets)),
		attribute.Int("relay.delivered", delivered),
	)
	r.log.Debug("message published",
		slog.Bool("broadcast", msg.Broadcast()),
		slog.Int("targets", len(targets)),
		slog.Int("delivered", delivered),
	)
	return delivered
}

func (r *Relay) resolve(msg Message) []Client {
	if msg.Broadcast() {
		return r.registry.Snapshot()
	}

	seen := make(map[string]struct{}, len(msg.Usernames))
	targets := make([]Client, 0, len(msg.Usernames))
	for _, username := range msg.Usernames {
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		if c, ok := r.registry.Lookup(username); ok {
			targets = append(targets, c)
		}
	}
	return targets
}
