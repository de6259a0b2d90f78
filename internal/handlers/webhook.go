package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/flow"
	"line-order-intake/internal/shop"
)

// maxBodyBytes caps webhook payloads.
const maxBodyBytes = 1 << 20

type ctxKey int

const shopKey ctxKey = iota

func shopFromContext(ctx context.Context) *shop.Config {
	cfg, _ := ctx.Value(shopKey).(*shop.Config)
	return cfg
}

// EventResult is the outcome of one webhook event.
type EventResult struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "ok" or "error"
	Error  string `json:"error,omitempty"`
}

// WebhookResponse is the body returned to LINE.
type WebhookResponse struct {
	Status  string        `json:"status"`
	Results []EventResult `json:"results"`
}

// verifySignature resolves the shop from the path and checks the body
// against the shop's channel secret.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := mux.Vars(r)["shop"]
		cfg, err := s.shops.ByPath(path)
		if err != nil {
			log.Warn().Str("path", path).Msg("Webhook for unknown shop")
			respondWithJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "unknown shop"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			log.Error().Err(err).Str("shopId", cfg.ID).Msg("Failed to read request body")
			respondWithJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "unreadable body"})
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		if err := line.ValidateSignature(cfg.ChannelSecret, r.Header.Get(line.SignatureHeader), body); err != nil {
			log.Warn().Str("shopId", cfg.ID).Msg("Invalid webhook signature")
			respondWithJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": "invalid signature"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), shopKey, cfg)))
	})
}

// Webhook decodes a LINE callback and runs its events through the flow.
// Events are grouped by user: groups run concurrently, a group's events run
// in arrival order.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	cfg := shopFromContext(r.Context())
	if cfg == nil {
		respondWithJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "unknown shop"})
		return
	}

	var req line.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Str("shopId", cfg.ID).Msg("Failed to decode webhook body")
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid JSON payload"})
		return
	}
	log.Info().Str("shopId", cfg.ID).Int("events", len(req.Events)).Msg("Received LINE webhook")

	results, err := s.dispatch(r.Context(), cfg, req.Events)
	if err != nil {
		log.Error().Err(err).Str("shopId", cfg.ID).Msg("Webhook dispatch failed")
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	respondWithJSON(w, http.StatusOK, WebhookResponse{Status: "success", Results: results})
}

// errDispatchPanic marks a panic recovered while handling events.
var errDispatchPanic = errors.New("panic while handling events")

func (s *Server) dispatch(ctx context.Context, cfg *shop.Config, events []line.Event) ([]EventResult, error) {
	results := make([]EventResult, len(events))

	var order []string
	groups := make(map[string][]int)
	for i, e := range events {
		id := e.Source.UserID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panicked error
	)
	for _, userID := range order {
		wg.Add(1)
		go func(userID string, idx []int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("userId", userID).Msg("Recovered from panic in event handler")
					mu.Lock()
					panicked = fmt.Errorf("%w: %v", errDispatchPanic, p)
					mu.Unlock()
				}
			}()

			for _, i := range idx {
				res := EventResult{UserID: userID, Status: "ok"}
				if err := s.events.Handle(ctx, cfg, flow.FromLINE(events[i])); err != nil {
					log.Error().Err(err).Str("userId", userID).Str("shopId", cfg.ID).Str("type", events[i].Type).Msg("Failed to handle event")
					res.Status = "error"
					res.Error = err.Error()
				}
				results[i] = res
			}
		}(userID, groups[userID])
	}
	wg.Wait()

	if panicked != nil {
		return nil, panicked
	}
	return results, nil
}
