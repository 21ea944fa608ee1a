package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
	"github.com/MikeSquared-Agency/Storyloop/internal/loop"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case loop.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, loop.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, autonomy.ErrStageDisabled):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
