package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/listing-radar/internal/delivery/http/response"
	"github.com/user/listing-radar/internal/usecase"
)

// Handler serves the watch-mode admin endpoints. Runs are never executed on
// the request goroutine: triggering only nudges the poll loop, which owns
// the browser.
type Handler struct {
	radar   usecase.Radar
	trigger chan<- struct{}
}

func NewHandler(radar usecase.Radar, trigger chan<- struct{}) *Handler {
	return &Handler{
		radar:   radar,
		trigger: trigger,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleTriggerRun queues an immediate pass. If one is already queued or
// running, the request is acknowledged without stacking another.
func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	select {
	case h.trigger <- struct{}{}:
		h.writeJSON(w, http.StatusAccepted, response.RunResponse{
			Status:  "accepted",
			Message: "run queued",
		})
	default:
		h.writeJSON(w, http.StatusConflict, response.RunResponse{
			Status:  "busy",
			Message: "a run is already queued",
		})
	}
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.StatusResponse{
		Running: h.radar.Running(),
		LastRun: h.radar.LastSummary(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
