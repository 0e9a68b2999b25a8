// Package relay holds the client registry, registration and publish fan-out
// shared by every connection and HTTP request of the push relay.
package relay

import (
	"sort"
	"sync"
)

// Client is a registry entry. Outbox is nil while the client is registered
// but has no live connection.
type Client struct {
	Username string
	Outbox   *Outbox
}

// Connected reports whether the client has a live outbound queue.
func (c Client) Connected() bool {
	return c.Outbox != nil && !c.Outbox.Closed()
}

// Registry maps usernames to clients. All access goes through a single
// read-write lock that is never held across I/O.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

// Upsert inserts or replaces the entry for username. A previous live outbox
// that is replaced by a different one is closed so its connection terminates.
func (r *Registry) Upsert(username string, outbox *Outbox) {
	r.mu.Lock()
	prev, exists := r.clients[username]
	r.clients[username] = Client{Username: username, Outbox: outbox}
	r.mu.Unlock()

	if exists && prev.Outbox != nil && prev.Outbox != outbox {
		prev.Outbox.Close()
	}
}

// insertIfAbsent adds a placeholder entry unless a connected client already
// holds the username.
func (r *Registry) insertIfAbsent(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.clients[username]; exists && c.Connected() {
		return false
	}
	r.clients[username] = Client{Username: username}
	return true
}

// Remove deletes the entry for username and closes its outbox. Removing an
// absent username is a no-op; the result reports whether an entry existed.
func (r *Registry) Remove(username string) (Client, bool) {
	r.mu.Lock()
	c, exists := r.clients[username]
	if exists {
		delete(r.clients, username)
	}
	r.mu.Unlock()

	if exists && c.Outbox != nil {
		c.Outbox.Close()
	}
	return c, exists
}

// RemoveIf deletes the entry for username only while it still carries outbox.
// A connection that has been superseded therefore never evicts its replacement.
func (r *Registry) RemoveIf(username string, outbox *Outbox) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.clients[username]
	if !exists || c.Outbox != outbox {
		return false
	}
	delete(r.clients, username)
	return true
}

// Lookup returns the entry for username.
func (r *Registry) Lookup(username string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[username]
	return c, ok
}

// Snapshot returns a copy of all entries sorted by username.
func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].Username < clients[j].Username
	})
	return clients
}

// Len returns the number of entries, connected or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Connected returns the number of entries with a live outbox.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.clients {
		if c.Connected() {
			n++
		}
	}
	return n
}

// CloseAll closes every live outbox and returns how many were closed.
// Entries stay in place; each connection removes itself on teardown.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	outboxes := make([]*Outbox, 0, len(r.clients))
	for _, c := range r.clients {
		if c.Outbox != nil {
			outboxes = append(outboxes, c.Outbox)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, o := range outboxes {
		if o.Close() {
			closed++
		}
	}
	return closed
}
