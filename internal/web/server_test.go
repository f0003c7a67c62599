package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/NaN-tic/csvimport/internal/config"
	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/database"
	"github.com/NaN-tic/csvimport/internal/store"
	"github.com/NaN-tic/csvimport/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer wires a full server over a temp metadata database and an
// in-memory record store.
func testServer(t *testing.T) (*httptest.Server, *database.ProfileRepo, *database.RunRepo) {
	t.Helper()

	db, err := database.Init(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	profiles := database.NewProfileRepo(db)
	runs := database.NewRunRepo(db)

	schema := store.NewSchema()
	schema.Register(store.Collection{
		Name: "res.partner",
		Fields: []store.Field{
			{Name: "name", Required: true},
			{Name: "amount", Digits: 2},
		},
	})
	runner := core.NewRunner(memory.New(schema), testLogger(), nil)

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Import.Timeout = 5 * time.Second

	s := NewServer(cfg, testLogger(), profiles, runs, runner)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv, profiles, runs
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'",
	}
	for name, want := range headers {
		if got := resp.Header.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

// ----------------------------------------------------------------------------
// Rate limiter
// ----------------------------------------------------------------------------

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("allow() request %d = false, want true", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("allow() beyond the limit = true, want false")
	}
	// Other clients keep their own budget
	if !rl.allow("10.0.0.2") {
		t.Error("allow() for a fresh client = false, want true")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first allow() = false, want true")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("second allow() = true, want false")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.allow("10.0.0.1") {
		t.Error("allow() after window reset = false, want true")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4711"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}
