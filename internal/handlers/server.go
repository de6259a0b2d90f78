// Package handlers exposes the HTTP surface: per-shop LINE webhooks, a health
// check and the notification counters.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"

	"line-order-intake/internal/flow"
	"line-order-intake/internal/notify"
	"line-order-intake/internal/shop"
)

// EventHandler processes one webhook event for a shop.
type EventHandler interface {
	Handle(ctx context.Context, cfg *shop.Config, ev flow.Event) error
}

// StatusSource reports notification delivery counters.
type StatusSource interface {
	Status() notify.Status
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	shops  *shop.Registry
	events EventHandler
	status StatusSource
}

// NewServer creates a Server. status may be nil, in which case the
// notification status endpoint answers 503.
func NewServer(shops *shop.Registry, events EventHandler, status StatusSource) (*Server, error) {
	if shops == nil {
		return nil, fmt.Errorf("shop registry cannot be nil")
	}
	if events == nil {
		return nil, fmt.Errorf("event handler cannot be nil")
	}
	return &Server{shops: shops, events: events, status: status}, nil
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	base := alice.New(recoverMiddleware, loggingMiddleware)

	r.Handle("/", base.ThenFunc(s.Health)).Methods(http.MethodGet)
	r.Handle("/notifications/status", base.ThenFunc(s.NotificationStatus)).Methods(http.MethodGet)
	r.Handle("/webhook/{shop}", base.Append(s.verifySignature).ThenFunc(s.Webhook)).Methods(http.MethodPost)
	return r
}

// Health answers the liveness probe.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Connected successfully!",
	})
}

// NotificationStatus reports per-channel delivery counters.
func (s *Server) NotificationStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Notification dispatcher not initialized",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, s.status.Status())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("Recovered from panic in handler")
				respondWithJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
