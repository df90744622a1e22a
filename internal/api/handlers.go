// Package api exposes the gateway's status and administrative endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ernestoguevaraa/celima-iot/internal/adapter/mqtt"
	"github.com/ernestoguevaraa/celima-iot/internal/processor"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// Handler serves /status and /admin/reset.
type Handler struct {
	serviceName    string
	serviceVersion string
	store          *state.Store
	registry       *processor.Registry
	publisher      *mqtt.Publisher
	logger         zerolog.Logger
	started        time.Time
}

// NewHandler creates the API handler.
func NewHandler(serviceName, serviceVersion string, store *state.Store, registry *processor.Registry, publisher *mqtt.Publisher, logger zerolog.Logger) *Handler {
	return &Handler{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		store:          store,
		registry:       registry,
		publisher:      publisher,
		logger:         logger.With().Str("component", "api").Logger(),
		started:        time.Now(),
	}
}

type statusResponse struct {
	Service   string             `json:"service"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Lines     map[string]int     `json:"lines_tracked"`
	Publisher mqtt.StatsSnapshot `json:"publisher"`
}

// StatusHandler reports the store and publisher state.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := statusResponse{
		Service: h.serviceName,
		Version: h.serviceVersion,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Lines:   h.store.LineCounts(),
	}
	if h.publisher != nil {
		resp.Publisher = h.publisher.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// ResetHandler clears every shift accumulator across all kinds and lines.
// This is the documented administrative reset path; each invocation gets a
// request id in the audit log.
func (h *Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	h.registry.ResetAll()
	h.logger.Warn().
		Str("request_id", requestID).
		Str("remote", r.RemoteAddr).
		Msg("All accumulator state reset by administrative request")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     "reset",
		"request_id": requestID,
	})
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
