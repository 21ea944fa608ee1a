package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
)

type AutonomyHandler struct {
	svc *loop.Service
}

func NewAutonomyHandler(svc *loop.Service) *AutonomyHandler {
	return &AutonomyHandler{svc: svc}
}

// Get evaluates a story with query-string overrides.
func (h *AutonomyHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := evaluateRequestFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	state, err := h.svc.Evaluate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *AutonomyHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req loop.EvaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	state, err := h.svc.Evaluate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *AutonomyHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req loop.ExecuteInput
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.UserID = r.Header.Get("X-User-ID")

	resp, err := h.svc.Execute(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Created > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

type BatchRequest struct {
	StoryIDs []string `json:"story_ids"`
	loop.EvaluateRequest
}

func (h *AutonomyHandler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	items, err := h.svc.EvaluateBatch(r.Context(), req.StoryIDs, req.EvaluateRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func evaluateRequestFromQuery(r *http.Request) (loop.EvaluateRequest, error) {
	q := r.URL.Query()
	req := loop.EvaluateRequest{
		Mode:      autonomy.Mode(q.Get("mode")),
		Objective: autonomy.Objective(q.Get("objective")),
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"cadence_hours", &req.Strategy.CadenceHours},
		{"cycles", &req.Strategy.Cycles},
		{"stale_after_hours", &req.StaleAfterHours},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, &queryError{key: p.key}
			}
			*p.dst = n
		}
	}
	if v := q.Get("auto_optimize"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, &queryError{key: "auto_optimize"}
		}
		req.Strategy.AutoOptimize = b
	}
	return req, nil
}

type queryError struct{ key string }

func (e *queryError) Error() string { return "invalid " + e.key }
