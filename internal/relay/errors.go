package relay

import "errors"

// ErrClientNotFound is returned when unregistering a username that has no entry.
var ErrClientNotFound = errors.New("client not found")
