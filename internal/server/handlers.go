package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Tyrowin/pushrelay/internal/logging"
	"github.com/Tyrowin/pushrelay/internal/relay"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxUsernameLen = 256

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func validateUsername(username string) error {
	if username == "" {
		return errors.New("username required")
	}
	if !utf8.ValidString(username) {
		return errors.New("username must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(username); n > maxUsernameLen {
		return fmt.Errorf("username longer than %d characters", maxUsernameLen)
	}
	if strings.Contains(username, "/") {
		return errors.New("username must not contain '/'")
	}
	return nil
}

// HealthHandler provides a simple liveness probe that never touches relay state.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "pushrelay is running")
}

// registerHandler creates a placeholder entry for the form field username
// and answers with the path the client should connect to.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	if err := validateUsername(username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.relay.Register(r.Context(), username)
	log.Debug("register request handled", logging.Username(username))

	writeJSON(w, http.StatusOK, registerResponse{
		Username: username,
		URL:      "/ws/" + url.PathEscape(username),
	})
}

// unregisterHandler removes the username given in the path.
func (s *Server) unregisterHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := s.relay.Unregister(r.Context(), username); err != nil {
		if errors.Is(err, relay.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		logging.FromContext(r.Context()).Error("unregister failed", logging.Username(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "unregister failed")
		return
	}

	writeJSON(w, http.StatusOK, unregisterResponse{Username: username})
}

// publishHandler fans a JSON message out to its targets and reports how many
// connected clients it was enqueued to.
func (s *Server) publishHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPublishSize)

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "message body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Message == nil {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	msg := relay.Message{Payload: *req.Message, Usernames: req.Usernames}
	delivered := s.relay.Publish(r.Context(), msg)
	s.metrics.ObservePublish(msg.Broadcast(), delivered)

	logging.FromContext(r.Context()).Debug("publish request handled",
		slog.Int("targets", len(req.Usernames)),
		slog.Int("delivered", delivered),
	)
	writeJSON(w, http.StatusOK, publishResponse{Delivered: delivered})
}

// clientsHandler lists every registry entry and whether it is connected.
func (s *Server) clientsHandler(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.relay.Registry().Snapshot()
	clients := make([]clientInfo, 0, len(snapshot))
	for _, c := range snapshot {
		clients = append(clients, clientInfo{Username: c.Username, Connected: c.Connected()})
	}
	writeJSON(w, http.StatusOK, clients)
}

// webSocketHandler upgrades the request and hands the connection to its
// pumps. The handler returns once both pumps are running. Upgrades that race
// with Shutdown are refused with 503.
func (s *Server) webSocketHandler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	username := mux.Vars(r)["username"]
	if err := validateUsername(username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.reservePumps() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Add(-2)
		log.Warn("websocket upgrade failed", logging.Username(username), logging.Err(err))
		return
	}

	connID := uuid.NewString()
	outbox := s.relay.Attach(r.Context(), username)
	c := newConnection(connID, username, conn, outbox, s.relay, s.cfg, s.log)
	c.onClose = func() {
		s.metrics.ConnectionClosed()
		c.log.Debug("connection released")
	}
	s.metrics.ConnectionOpened()

	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
}
