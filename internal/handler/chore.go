package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/rollover"
	"github.com/dukerupert/simplechores/internal/tracker"
)

type ChoreHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewChoreHandler(t *tracker.Tracker, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{tracker: t, logger: logger}
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Config().Chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := model.NormalizeSlug(r.PathValue("slug"))
	def, ok := h.tracker.Config().Chore(slug)
	if !ok {
		writeError(w, h.logger, "failed to get chore", &model.NotFoundError{Kind: model.KindChore, Slug: slug})
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ChoreDefinition
	if !decode(w, r, &req) {
		return
	}
	def, err := h.tracker.CreateChore(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "failed to create chore", err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req config.ChoreUpdate
	if !decode(w, r, &req) {
		return
	}
	def, err := h.tracker.UpdateChore(r.Context(), r.PathValue("slug"), req)
	if err != nil {
		writeError(w, h.logger, "failed to update chore", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteChore(r.Context(), r.PathValue("slug")); err != nil {
		writeError(w, h.logger, "failed to delete chore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markRequest struct {
	State string `json:"state"`
}

func (req markRequest) parse() (model.ChoreState, error) {
	return model.ParseChoreState(req.State)
}

// Mark sets one assignee's chore state.
func (h *ChoreHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := req.parse()
	if err != nil {
		writeError(w, h.logger, "failed to mark chore", err)
		return
	}
	res, err := h.tracker.MarkChore(r.Context(), r.PathValue("assignee"), r.PathValue("slug"), state)
	if err != nil {
		writeError(w, h.logger, "failed to mark chore", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MarkAll sets the chore state for every assignee. Partial failures answer
// with the per-assignee errors next to the transitions that went through.
func (h *ChoreHandler) MarkAll(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := req.parse()
	if err != nil {
		writeError(w, h.logger, "failed to mark chore", err)
		return
	}
	results, err := h.tracker.MarkChoreAll(r.Context(), r.PathValue("slug"), state)
	if results == nil {
		results = []tracker.MarkResult{}
	}
	if err != nil {
		var batch *model.BatchError
		if errors.As(err, &batch) {
			failures := make(map[string]string, len(batch.Failures))
			for a, e := range batch.Failures {
				failures[a] = e.Error()
			}
			if statusFor(err) >= 500 {
				h.logger.Error("failed to mark chore", "error", err)
			}
			writeJSON(w, statusFor(err), map[string]any{
				"error":    err.Error(),
				"results":  results,
				"failures": failures,
			})
			return
		}
		writeError(w, h.logger, "failed to mark chore", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ChoreHandler) StartNewDay(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tracker.StartNewDay(r.Context(), r.URL.Query().Get("assignee"))
	h.writeReport(w, "failed to start new day", rep, err)
}

func (h *ChoreHandler) ResetCompleted(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tracker.ResetCompleted(r.Context(), r.URL.Query().Get("assignee"))
	h.writeReport(w, "failed to reset chores", rep, err)
}

func (h *ChoreHandler) writeReport(w http.ResponseWriter, fallback string, rep rollover.Report, err error) {
	if err != nil {
		writeError(w, h.logger, fallback, err)
		return
	}
	if rep.Missed == nil {
		rep.Missed = map[string]int{}
	}
	if rep.Changed == nil {
		rep.Changed = []model.Key{}
	}
	if rep.Privileges == nil {
		rep.Privileges = []model.Key{}
	}
	writeJSON(w, http.StatusOK, rep)
}
