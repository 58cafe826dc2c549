package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/database"
	"github.com/dukerupert/simplechores/internal/model"
	"github.com/dukerupert/simplechores/internal/tracker"
	ws "github.com/dukerupert/simplechores/internal/websocket"
)

const testDoc = `
chores:
  - name: Dishes
    slug: dishes
    frequency: daily
    assignees: [alice, bob]
    points: 10
privileges:
  - name: Screen Time
    slug: screen_time
    linked_chores: [dishes]
    assignees: [bob]
`

func setupServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "simple_chores.yaml")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(logger)
	tr := tracker.New(config.NewStore(config.NewFileSource(path), logger), db, hub, logger, tracker.WithPollInterval(time.Hour))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start tracker: %v", err)
	}
	t.Cleanup(tr.Stop)

	return New(tr, hub, opts, logger).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]any](t, rec)["error"].(string)
}

func TestHealth(t *testing.T) {
	h := setupServer(t, Options{})
	rec := do(t, h, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[map[string]any](t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestMarkChoreAndBalance(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "POST", "/api/assignees/bob/chores/dishes/state", `{"state":"Complete"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark status = %d body=%s", rec.Code, rec.Body)
	}
	res := decodeBody[tracker.MarkResult](t, rec)
	if res.PointsDelta != 10 || res.To != model.ChoreComplete {
		t.Errorf("result = %+v", res)
	}

	rec = do(t, h, "GET", "/api/assignees/bob/points", "")
	if b := decodeBody[model.Balance](t, rec); b.Total != 10 || b.Earned != 10 {
		t.Errorf("balance = %+v", b)
	}

	rec = do(t, h, "GET", "/api/assignees/bob/privileges/screen_time", "")
	if st := decodeBody[model.PrivilegeStatus](t, rec); st.State != model.PrivilegeEnabled {
		t.Errorf("privilege state = %s", st.State)
	}
}

func TestErrorMapping(t *testing.T) {
	h := setupServer(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{"unknown chore", "POST", "/api/assignees/bob/chores/vacuum/state", `{"state":"pending"}`, http.StatusNotFound, `chore slug "vacuum" not found`},
		{"bad state", "POST", "/api/assignees/bob/chores/dishes/state", `{"state":"done"}`, http.StatusBadRequest, `unknown chore state`},
		{"bad json", "POST", "/api/chores", `{`, http.StatusBadRequest, "invalid JSON"},
		{"duplicate chore", "POST", "/api/chores", `{"name":"Dishes","slug":"dishes","frequency":"daily","assignees":["bob"]}`, http.StatusConflict, `duplicate chore slug "dishes"`},
		{"invalid chore", "POST", "/api/chores", `{"name":"X","slug":"x","frequency":"weekly","assignees":["bob"]}`, http.StatusBadRequest, `unknown frequency`},
		{"linked delete", "DELETE", "/api/chores/dishes", "", http.StatusBadRequest, `screen_time`},
		{"negative duration", "POST", "/api/assignees/bob/privileges/screen_time/temporary-disable", `{"duration":"-5m"}`, http.StatusBadRequest, "duration must be positive"},
		{"bad duration", "POST", "/api/assignees/bob/privileges/screen_time/temporary-disable", `{"duration":"soon"}`, http.StatusBadRequest, "invalid duration"},
		{"unknown assignee", "GET", "/api/assignees/carol/summary", "", http.StatusNotFound, `assignee "carol" not found`},
		{"bad limit", "GET", "/api/assignees/bob/points/history?limit=x", "", http.StatusBadRequest, "invalid limit"},
		{"bad counter", "GET", "/api/assignees/bob/points/history?counter=bonus", "", http.StatusBadRequest, "unknown counter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if msg := errorOf(t, rec); !strings.Contains(msg, tt.msg) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.msg)
			}
		})
	}
}

func TestChoreCRUD(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "POST", "/api/chores", `{"name":"Trash","slug":"Take-Out-Trash","frequency":"manual","assignees":["alice"],"points":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	if def := decodeBody[model.ChoreDefinition](t, rec); def.Slug != "take_out_trash" {
		t.Errorf("slug = %q", def.Slug)
	}

	rec = do(t, h, "PUT", "/api/chores/take_out_trash", `{"points":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}
	if def := decodeBody[model.ChoreDefinition](t, rec); def.Points != 4 {
		t.Errorf("points = %d", def.Points)
	}

	rec = do(t, h, "GET", "/api/chores", "")
	if chores := decodeBody[[]model.ChoreDefinition](t, rec); len(chores) != 2 {
		t.Errorf("chores = %d, want 2", len(chores))
	}

	rec = do(t, h, "DELETE", "/api/chores/take_out_trash", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, h, "GET", "/api/chores/take_out_trash", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d", rec.Code)
	}
}

func TestMarkAllAndRollover(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "POST", "/api/chores/dishes/state", `{"state":"pending"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark all status = %d body=%s", rec.Code, rec.Body)
	}
	if results := decodeBody[[]tracker.MarkResult](t, rec); len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}

	rec = do(t, h, "POST", "/api/rollover", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rollover status = %d body=%s", rec.Code, rec.Body)
	}
	rep := decodeBody[struct {
		Missed map[string]int `json:"missed"`
	}](t, rec)
	if rep.Missed["alice"] != 10 || rep.Missed["bob"] != 10 {
		t.Errorf("missed = %v", rep.Missed)
	}

	rec = do(t, h, "GET", "/api/summaries", "")
	sums := decodeBody[[]model.Summary](t, rec)
	if len(sums) != 2 || sums[0].Missed != 10 || sums[0].PendingCount != 1 {
		t.Errorf("summaries = %+v", sums)
	}
}

func TestPrivilegeTimerRoutes(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "POST", "/api/assignees/bob/privileges/screen_time/temporary-disable", `{"duration":"1h"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d body=%s", rec.Code, rec.Body)
	}
	st := decodeBody[model.PrivilegeStatus](t, rec)
	if st.State != model.PrivilegeTemporarilyDisabled || st.DisableUntil == nil {
		t.Fatalf("status = %+v", st)
	}

	rec = do(t, h, "POST", "/api/assignees/bob/privileges/screen_time/timer", `{"duration":"-2h"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust status = %d body=%s", rec.Code, rec.Body)
	}
	if st := decodeBody[model.PrivilegeStatus](t, rec); st.State != model.PrivilegeDisabled || st.DisableUntil != nil {
		t.Errorf("after adjust = %+v", st)
	}

	rec = do(t, h, "POST", "/api/assignees/bob/privileges/screen_time/enable", "")
	if st := decodeBody[model.PrivilegeStatus](t, rec); st.State != model.PrivilegeEnabled {
		t.Errorf("after enable = %+v", st)
	}
}

func TestPointsRoutes(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "POST", "/api/assignees/alice/points", `{"delta":7}`)
	if b := decodeBody[model.Balance](t, rec); b.Total != 7 {
		t.Errorf("total = %d", b.Total)
	}

	rec = do(t, h, "GET", "/api/assignees/alice/points/history?limit=5", "")
	if events := decodeBody[[]model.LedgerEvent](t, rec); len(events) != 1 || events[0].Delta != 7 {
		t.Errorf("events = %+v", events)
	}

	rec = do(t, h, "POST", "/api/points/reset", `{"reset_total":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d body=%s", rec.Code, rec.Body)
	}
	rec = do(t, h, "GET", "/api/assignees/alice/points", "")
	if b := decodeBody[model.Balance](t, rec); b.Total != 0 {
		t.Errorf("total after reset = %d", b.Total)
	}
}

func TestConfigRoutes(t *testing.T) {
	h := setupServer(t, Options{})

	rec := do(t, h, "GET", "/api/config", "")
	snap := decodeBody[model.Snapshot](t, rec)
	if len(snap.Chores) != 1 || len(snap.Privileges) != 1 {
		t.Errorf("config = %+v", snap)
	}

	rec = do(t, h, "POST", "/api/config/reload", "")
	if got := decodeBody[map[string]any](t, rec)["changed"]; got != false {
		t.Errorf("changed = %v, want false", got)
	}
}

func TestWriteThrottle(t *testing.T) {
	h := setupServer(t, Options{WriteLimit: 1})

	if rec := do(t, h, "POST", "/api/assignees/alice/points", `{"delta":1}`); rec.Code != http.StatusOK {
		t.Fatalf("first write status = %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/assignees/alice/points", `{"delta":1}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second write status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec := do(t, h, "GET", "/api/assignees/alice/points", ""); rec.Code != http.StatusOK {
		t.Errorf("read status = %d", rec.Code)
	}
}
