package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

type RunsHandler struct {
	svc *loop.Service
}

func NewRunsHandler(svc *loop.Service) *RunsHandler {
	return &RunsHandler{svc: svc}
}

func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req loop.CreateRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	run, err := h.svc.CreateRun(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-User-ID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *store.RunStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := store.RunStatus(v)
		switch s {
		case store.RunStatusPlanned, store.RunStatusInProgress, store.RunStatusCompleted:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		status = &s
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.svc.ListRuns(r.Context(), chi.URLParam(r, "id"), status, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}
	var req loop.OutcomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	run, err := h.svc.RecordOutcome(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RunsHandler) CloseStale(w http.ResponseWriter, r *http.Request) {
	var req loop.CloseStaleRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := h.svc.CloseStale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
