package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/overlay-relay/internal/domain"
	"github.com/overlay-relay/internal/service"
	"github.com/rs/cors"
)

// maxStateBodySize caps POSTed overlay documents
const maxStateBodySize = 64 << 10

// User-facing messages. Upstream and store details stay in the server log.
const (
	msgReadFailed        = "Could not read overlay state."
	msgWriteFailed       = "Could not update overlay state."
	msgInvalidState      = "Invalid state object in request body."
	msgIDRequired        = "A player ID is required."
	msgUpstreamDown      = "Could not reach the leaderboard. Check your internet connection and try again."
	msgUpstreamFormat    = "Could not read data from the leaderboard. The page format may have changed."
	msgMethodNotAllowed  = "Method not allowed"
	msgNotFound          = "Not found"
	msgHistoryDisabled   = "Overlay history is not enabled."
	msgHistoryFailed     = "Could not read overlay history."
	msgStoreNotReachable = "State store is not reachable."
)

// Handler provides HTTP handlers for the overlay relay and player lookup
type Handler struct {
	overlay *service.OverlayService
	lookup  *service.LookupService
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(overlay *service.OverlayService, lookup *service.LookupService, logger *slog.Logger) *Handler {
	return &Handler{
		overlay: overlay,
		lookup:  lookup,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware().Handler)

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// /api/* are the paths the browser pages were first written against
	for _, path := range []string{"/overlay-state", "/api/overlay"} {
		r.Get(path, h.GetOverlayState)
		r.Post(path, h.SetOverlayState)
		r.Options(path, h.Preflight)
	}
	for _, path := range []string{"/player-lookup", "/api/player"} {
		r.Get(path, h.LookupPlayer)
		r.Options(path, h.Preflight)
	}

	r.Get("/overlay-history", h.GetOverlayHistory)

	return r
}

// corsMiddleware allows every origin; the control and display pages are
// opened independently of the server.
func corsMiddleware() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusOK,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, msgNotFound)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

// Preflight answers a bare OPTIONS request with an empty 200
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports whether the state store is reachable
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.overlay.Ping(ctx); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, msgStoreNotReachable)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetOverlayState returns the current state of ?slot=
func (h *Handler) GetOverlayState(w http.ResponseWriter, r *http.Request) {
	slot := domain.ParseSlot(r.URL.Query().Get("slot"))

	state, err := h.overlay.Read(r.Context(), slot)
	if err != nil {
		h.logger.Error("overlay read failed", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, msgReadFailed)
		return
	}

	h.writeSuccess(w, state)
}

// SetOverlayState stores the request body as the state of ?slot=
func (h *Handler) SetOverlayState(w http.ResponseWriter, r *http.Request) {
	slot := domain.ParseSlot(r.URL.Query().Get("slot"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStateBodySize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidState)
		return
	}

	stored, err := h.overlay.Write(r.Context(), slot, body)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			h.writeError(w, http.StatusBadRequest, msgInvalidState)
			return
		}
		h.logger.Error("overlay write failed", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, msgWriteFailed)
		return
	}

	h.logger.Info("overlay state updated", "slot", slot)
	h.writeSuccess(w, stored)
}

// LookupPlayer resolves ?id= against the leaderboard
func (h *Handler) LookupPlayer(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("id")
	playerID := domain.NormalizePlayerID(rawID)

	player, err := h.lookup.Lookup(r.Context(), rawID)
	if err != nil {
		status, message := lookupFailure(err, playerID)
		if status >= http.StatusInternalServerError {
			h.logger.Error("player lookup failed", "player_id", playerID, "error", err)
		}
		h.writeError(w, status, message)
		return
	}

	h.writeSuccess(w, player)
}

// lookupFailure maps a lookup error to a status and a user-safe message
func lookupFailure(err error, playerID string) (int, string) {
	var statusErr *domain.UpstreamStatusError
	switch {
	case errors.Is(err, domain.ErrPlayerIDRequired):
		return http.StatusBadRequest, msgIDRequired
	case domain.IsNotFoundError(err):
		return http.StatusNotFound, "No player found with ID \"" + playerID + "\". Double-check the ID and try again."
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, "The leaderboard returned an error (" + strconv.Itoa(statusErr.StatusCode) + "). Try again in a moment."
	case errors.Is(err, domain.ErrUpstreamFormat):
		return http.StatusBadGateway, msgUpstreamFormat
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return http.StatusBadGateway, msgUpstreamDown
	default:
		return http.StatusInternalServerError, domain.ErrInternalError.Error()
	}
}

// GetOverlayHistory returns recent writes for ?slot=, newest first
func (h *Handler) GetOverlayHistory(w http.ResponseWriter, r *http.Request) {
	slot := domain.ParseSlot(r.URL.Query().Get("slot"))

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	events, err := h.overlay.History(r.Context(), slot, limit)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryDisabled) {
			h.writeError(w, http.StatusNotFound, msgHistoryDisabled)
			return
		}
		h.logger.Error("overlay history failed", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, msgHistoryFailed)
		return
	}

	h.writeSuccess(w, events)
}
