package relay

import "sync"

// Outbox is the outbound message queue of one live connection.
// Push never blocks: the queue is unbounded and messages are drained by
// the connection's write pump in the order they were pushed.
type Outbox struct {
	mu     sync.Mutex
	queue  [][]byte
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

// NewOutbox creates an empty, open Outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends a message to the queue. It returns false if the outbox is closed.
func (o *Outbox) Push(message []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, message)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued message.
func (o *Outbox) Drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	messages := o.queue
	o.queue = nil
	return messages
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Ready is signalled after a push. A single signal may cover several messages.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Done is closed once the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Close marks the outbox closed. Messages already queued can still be drained.
// It reports whether this call performed the close.
func (o *Outbox) Close() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.closed = true
	close(o.done)
	return true
}

// Closed reports whether Close has been called.
func (o *Outbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
