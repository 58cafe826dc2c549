package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/simplechores/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) int {
	var batch *model.BatchError
	switch {
	case errors.As(err, &batch):
		for _, e := range batch.Failures {
			if statusFor(e) >= 500 {
				return http.StatusInternalServerError
			}
		}
		return http.StatusBadRequest
	case model.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's own message for caller mistakes and a
// generic one for internal failures, which are logged instead.
func writeError(w http.ResponseWriter, logger *slog.Logger, fallback string, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error(fallback, "error", err)
		writeMessage(w, status, fallback)
		return
	}
	writeMessage(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}
