package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// routes wires every endpoint into a gorilla/mux router. Middleware runs in
// order: tracing, request logging, then CORS.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.tracing, s.requestLogger, s.cors)

	r.HandleFunc("/", HealthHandler)
	r.HandleFunc("/health", HealthHandler)

	r.HandleFunc("/register", s.registerHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/register/{username}", s.unregisterHandler).Methods(http.MethodDelete, http.MethodOptions)
	r.HandleFunc("/publish", s.publishHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws/{username}", s.webSocketHandler).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/clients", s.clientsHandler).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet, http.MethodOptions)

	return r
}
