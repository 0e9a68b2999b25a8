package server

import (
	"errors"
	"net"
	"strings"
)

type registerResponse struct {
	Username string `json:"username"`
	URL      string `json:"url"`
}

type unregisterResponse struct {
	Username string `json:"username"`
}

// publishRequest addresses a message to the listed usernames, or to every
// connected client when the list is empty.
type publishRequest struct {
	Message   *string  `json:"message"`
	Usernames []string `json:"usernames,omitempty"`
}

type publishResponse struct {
	Delivered int `json:"delivered"`
}

type clientInfo struct {
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
