package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/pushrelay/internal/relay"
	"github.com/gorilla/websocket"
)

const testOrigin = "http://localhost:8080"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestServer starts the relay front-end on an httptest server. customize
// may adjust the configuration before the server is built.
func newTestServer(t *testing.T, customize func(cfg *Config), opts ...Option) (*Server, *httptest.Server) {
	t.Helper()

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	if customize != nil {
		customize(cfg)
	}

	rl := relay.New(relay.WithLogger(discardLogger))
	srv := New(*cfg, rl, append([]Option{WithLogger(discardLogger)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(2 * time.Second)
	})
	return srv, ts
}

func wsURL(ts *httptest.Server, username string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + url.PathEscape(username)
}

// connectWebSocket dials username's endpoint with the test origin and waits
// until the relay has attached the connection.
func connectWebSocket(t *testing.T, srv *Server, ts *httptest.Server, username string) *websocket.Conn {
	t.Helper()

	before := attachedOutbox(srv, username)
	conn, err := dialWebSocket(ts, username, testOrigin)
	if err != nil {
		t.Fatalf("Failed to connect %s: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	waitFor(t, username+" attached", func() bool {
		current := attachedOutbox(srv, username)
		return current != nil && current != before && !current.Closed()
	})
	return conn
}

func attachedOutbox(srv *Server, username string) *relay.Outbox {
	c, ok := srv.relay.Registry().Lookup(username)
	if !ok {
		return nil
	}
	return c.Outbox
}

func dialWebSocket(ts *httptest.Server, username, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL(ts, username), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", msgType)
	}
	return string(data)
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", data)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			t.Fatal("connection still open")
		}
		return
	}
}

func register(t *testing.T, ts *httptest.Server, username string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/register", url.Values{"username": {username}})
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func unregister(t *testing.T, ts *httptest.Server, username string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/register/"+url.PathEscape(username), http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unregister request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func publish(t *testing.T, ts *httptest.Server, body string) (*http.Response, publishResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/publish", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("publish request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out publishResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode publish response: %v", err)
		}
	}
	return resp, out
}

func assertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
