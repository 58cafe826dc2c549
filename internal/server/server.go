package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/simplechores/internal/handler"
	"github.com/dukerupert/simplechores/internal/middleware"
	"github.com/dukerupert/simplechores/internal/tracker"
	ws "github.com/dukerupert/simplechores/internal/websocket"
)

type Options struct {
	// OriginPatterns restricts websocket origins; empty accepts any.
	OriginPatterns []string
	// WriteLimit caps mutating requests per client per minute; 0 disables.
	WriteLimit int
}

type Server struct {
	tracker    *tracker.Tracker
	hub        *ws.Hub
	choreH     *handler.ChoreHandler
	privilegeH *handler.PrivilegeHandler
	pointsH    *handler.PointsHandler
	summaryH   *handler.SummaryHandler
	configH    *handler.ConfigHandler
	throttle   *middleware.Throttle
	opts       Options
	started    time.Time
	logger     *slog.Logger
}

func New(t *tracker.Tracker, hub *ws.Hub, opts Options, logger *slog.Logger) *Server {
	return &Server{
		tracker:    t,
		hub:        hub,
		choreH:     handler.NewChoreHandler(t, logger.With("component", "chore_handler")),
		privilegeH: handler.NewPrivilegeHandler(t, logger.With("component", "privilege_handler")),
		pointsH:    handler.NewPointsHandler(t, logger.With("component", "points_handler")),
		summaryH:   handler.NewSummaryHandler(t, logger.With("component", "summary_handler")),
		configH:    handler.NewConfigHandler(t),
		throttle:   middleware.NewThrottle(opts.WriteLimit, time.Minute),
		opts:       opts,
		started:    time.Now(),
		logger:     logger,
	}
}

// Throttle returns the write throttle for periodic pruning.
func (s *Server) Throttle() *middleware.Throttle {
	return s.throttle
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.opts.OriginPatterns...))

	// Configuration
	mux.HandleFunc("GET /api/config", s.configH.Get)
	mux.HandleFunc("POST /api/config/reload", s.configH.Reload)

	// Chore definitions
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/{slug}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{slug}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{slug}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{slug}/state", s.choreH.MarkAll)

	// Privilege definitions
	mux.HandleFunc("GET /api/privileges", s.privilegeH.List)
	mux.HandleFunc("POST /api/privileges", s.privilegeH.Create)
	mux.HandleFunc("PUT /api/privileges/{slug}", s.privilegeH.Update)
	mux.HandleFunc("DELETE /api/privileges/{slug}", s.privilegeH.Delete)

	// Per-assignee runtime state
	mux.HandleFunc("POST /api/assignees/{assignee}/chores/{slug}/state", s.choreH.Mark)
	mux.HandleFunc("GET /api/assignees/{assignee}/privileges/{slug}", s.privilegeH.State)
	mux.HandleFunc("POST /api/assignees/{assignee}/privileges/{slug}/enable", s.privilegeH.Enable)
	mux.HandleFunc("POST /api/assignees/{assignee}/privileges/{slug}/disable", s.privilegeH.Disable)
	mux.HandleFunc("POST /api/assignees/{assignee}/privileges/{slug}/temporary-disable", s.privilegeH.TemporarilyDisable)
	mux.HandleFunc("POST /api/assignees/{assignee}/privileges/{slug}/timer", s.privilegeH.AdjustTimer)
	mux.HandleFunc("GET /api/assignees/{assignee}/points", s.pointsH.Balance)
	mux.HandleFunc("POST /api/assignees/{assignee}/points", s.pointsH.Adjust)
	mux.HandleFunc("GET /api/assignees/{assignee}/points/history", s.pointsH.History)
	mux.HandleFunc("GET /api/assignees/{assignee}/summary", s.summaryH.Get)
	mux.HandleFunc("POST /api/assignees/{assignee}/summary/refresh", s.summaryH.Refresh)

	// Household-wide operations
	mux.HandleFunc("GET /api/summaries", s.summaryH.List)
	mux.HandleFunc("POST /api/points/reset", s.pointsH.Reset)
	mux.HandleFunc("POST /api/rollover", s.choreH.StartNewDay)
	mux.HandleFunc("POST /api/rollover/reset-completed", s.choreH.ResetCompleted)

	var h http.Handler = mux
	h = s.throttle.Writes(h)
	h = middleware.Recovery(s.logger.With("component", "http"))(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"ws_clients": s.hub.ClientCount(),
		"ws_dropped": s.hub.Dropped(),
	})
}
