package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/simplechores/internal/tracker"
)

type SummaryHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewSummaryHandler(t *tracker.Tracker, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{tracker: t, logger: logger}
}

func (h *SummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	sums, err := h.tracker.Summaries(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.Summary(r.Context(), r.PathValue("assignee"))
	if err != nil {
		writeError(w, h.logger, "failed to get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SummaryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.RefreshSummary(r.Context(), r.PathValue("assignee"))
	if err != nil {
		writeError(w, h.logger, "failed to refresh summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
