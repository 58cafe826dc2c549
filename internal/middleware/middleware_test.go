package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"remote addr", "", "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded chain", "1.2.3.4, 10.0.0.1", "10.0.0.1:5555", "1.2.3.4"},
		{"forwarded single", " 1.2.3.4 ", "10.0.0.1:5555", "1.2.3.4"},
		{"no port", "", "10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := RealIP(r); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestIDReusesIncoming(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc" {
		t.Errorf("context id = %q, want %q", seen, "abc")
	}
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("header id = %q, want %q", got, "abc")
	}
}

func TestRequestIDGenerates(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("generated id = %q, want a uuid", got)
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/chores", nil))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level, got %q", out)
	}
	if !strings.Contains(out, "status=404") || !strings.Contains(out, "path=/api/chores") {
		t.Errorf("missing attrs in %q", out)
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chores", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic not logged: %q", buf.String())
	}
}

func TestThrottleAllow(t *testing.T) {
	th := NewThrottle(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !th.Allow("key") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if th.Allow("key") {
		t.Error("4th request should be denied")
	}
	if !th.Allow("other") {
		t.Error("other key should be allowed")
	}

	now = now.Add(time.Minute)
	if !th.Allow("key") {
		t.Error("should be allowed after the window ends")
	}
}

func TestThrottlePrune(t *testing.T) {
	th := NewThrottle(1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	th.Allow("old")
	now = now.Add(2 * time.Minute)
	th.Allow("new")
	th.Prune()

	th.mu.Lock()
	defer th.mu.Unlock()
	if _, ok := th.windows["old"]; ok {
		t.Error("ended window should have been pruned")
	}
	if _, ok := th.windows["new"]; !ok {
		t.Error("active window should remain")
	}
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !th.Allow("key") {
			t.Fatal("disabled throttle denied a request")
		}
	}
}

func TestThrottleWritesSkipsReads(t *testing.T) {
	th := NewThrottle(1, time.Minute)
	h := th.Writes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/summaries", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d status = %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chores", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first POST status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chores", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second POST status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
