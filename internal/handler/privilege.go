package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/tracker"
)

type PrivilegeHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewPrivilegeHandler(t *tracker.Tracker, logger *slog.Logger) *PrivilegeHandler {
	return &PrivilegeHandler{tracker: t, logger: logger}
}

func (h *PrivilegeHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Config().Privileges)
}

func (h *PrivilegeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.PrivilegeDefinition
	if !decode(w, r, &req) {
		return
	}
	def, err := h.tracker.CreatePrivilege(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "failed to create privilege", err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *PrivilegeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req config.PrivilegeUpdate
	if !decode(w, r, &req) {
		return
	}
	def, err := h.tracker.UpdatePrivilege(r.Context(), r.PathValue("slug"), req)
	if err != nil {
		writeError(w, h.logger, "failed to update privilege", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *PrivilegeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeletePrivilege(r.Context(), r.PathValue("slug")); err != nil {
		writeError(w, h.logger, "failed to delete privilege", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PrivilegeHandler) State(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "failed to get privilege", h.tracker.PrivilegeState)
}

func (h *PrivilegeHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "failed to enable privilege", h.tracker.EnablePrivilege)
}

func (h *PrivilegeHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "failed to disable privilege", h.tracker.DisablePrivilege)
}

type durationRequest struct {
	Duration string `json:"duration"`
}

func (req durationRequest) parse() (time.Duration, error) {
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return 0, &model.ValidationError{Field: "duration", Reason: fmt.Sprintf("invalid duration %q", req.Duration)}
	}
	return d, nil
}

// TemporarilyDisable takes {"duration": "30m"}.
func (h *PrivilegeHandler) TemporarilyDisable(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := req.parse()
	if err != nil {
		writeError(w, h.logger, "failed to disable privilege", err)
		return
	}
	h.respond(w, r, "failed to disable privilege", func(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error) {
		return h.tracker.TemporarilyDisablePrivilege(ctx, assignee, slug, d)
	})
}

// AdjustTimer takes {"duration": "-10m"}.
func (h *PrivilegeHandler) AdjustTimer(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := req.parse()
	if err != nil {
		writeError(w, h.logger, "failed to adjust privilege timer", err)
		return
	}
	h.respond(w, r, "failed to adjust privilege timer", func(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error) {
		return h.tracker.AdjustTemporaryDisable(ctx, assignee, slug, d)
	})
}

func (h *PrivilegeHandler) respond(w http.ResponseWriter, r *http.Request, fallback string, fn func(ctx context.Context, assignee, slug string) (model.PrivilegeStatus, error)) {
	st, err := fn(r.Context(), r.PathValue("assignee"), r.PathValue("slug"))
	if err != nil {
		writeError(w, h.logger, fallback, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
