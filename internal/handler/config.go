package handler

import (
	"net/http"

	"github.com/dukerupert/simplechores/internal/tracker"
)

type ConfigHandler struct {
	tracker *tracker.Tracker
}

func NewConfigHandler(t *tracker.Tracker) *ConfigHandler {
	return &ConfigHandler{tracker: t}
}

// Get returns the active chore document.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Config())
}

// Reload re-reads the chore document now instead of waiting for the next
// poll. A rejected document keeps the active one and reports changed=false.
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	changed := h.tracker.CheckConfig()
	cfg := h.tracker.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":    changed,
		"chores":     len(cfg.Chores),
		"privileges": len(cfg.Privileges),
	})
}
