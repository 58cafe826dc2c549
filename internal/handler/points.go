package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/tracker"
)

type PointsHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewPointsHandler(t *tracker.Tracker, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{tracker: t, logger: logger}
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.tracker.Balance(r.PathValue("assignee"))
	if err != nil {
		writeError(w, h.logger, "failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (h *PointsHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.tracker.AdjustPoints(r.Context(), r.PathValue("assignee"), req.Delta)
	if err != nil {
		writeError(w, h.logger, "failed to adjust points", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type resetRequest struct {
	Assignee   string `json:"assignee"`
	ResetTotal bool   `json:"reset_total"`
}

// Reset clears period counters; an empty assignee covers everyone.
func (h *PointsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tracker.ResetPoints(r.Context(), req.Assignee, req.ResetTotal); err != nil {
		writeError(w, h.logger, "failed to reset points", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	counter := model.Counter(r.URL.Query().Get("counter"))
	events, err := h.tracker.History(r.Context(), r.PathValue("assignee"), counter, limit)
	if err != nil {
		writeError(w, h.logger, "failed to list history", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
