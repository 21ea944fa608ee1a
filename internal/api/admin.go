package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
)

type AdminHandler struct {
	svc     *loop.Service
	sweeper *loop.Sweeper
}

// NewAdminHandler accepts a nil sweeper when the sweeper is disabled.
func NewAdminHandler(svc *loop.Service, sw *loop.Sweeper) *AdminHandler {
	return &AdminHandler{svc: svc, sweeper: sw}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) Features(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Features())
}

// Sweep runs the stale-run sweeper now instead of waiting for its schedule.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sweeper disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.sweeper.RunOnce(r.Context()))
}
