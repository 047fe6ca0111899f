package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pdf-annotation-sync/pkg/logger"
)

type recordingLogger struct {
	warnings []string
	debugs   []string
}

func (l *recordingLogger) Info(msg string, fields ...interface{})             {}
func (l *recordingLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *recordingLogger) Warn(msg string, fields ...interface{})  { l.warnings = append(l.warnings, msg) }
func (l *recordingLogger) Debug(msg string, fields ...interface{}) { l.debugs = append(l.debugs, msg) }

func TestRequestLogger(t *testing.T) {
	rec := &recordingLogger{}

	ok := RequestLogger(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	failing := RequestLogger(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/highlights", nil))

	if len(rec.debugs) != 1 {
		t.Fatalf("expected one debug line, got %v", rec.debugs)
	}
	if len(rec.warnings) != 1 || rec.warnings[0] != "Request failed" {
		t.Fatalf("expected one failure warning, got %v", rec.warnings)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 5, logger.Nop())
	if rl != nil {
		t.Fatalf("expected nil limiter when rps is zero")
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := rl.Middleware(next)
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rec := &recordingLogger{}
	rl := NewRateLimiter(0.001, 2, rec)

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", rr.Code)
	}
	if len(rec.warnings) != 1 {
		t.Fatalf("expected one rate limit warning, got %v", rec.warnings)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.Nop())
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d: expected burst to be allowed", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("expected request over burst to be rejected")
	}

	clock = clock.Add(time.Minute)
	rl.Allow("10.0.0.2")
	if len(rl.limiters) != 2 {
		t.Fatalf("expected recently active clients to be kept, got %d", len(rl.limiters))
	}

	clock = clock.Add(limiterIdleTimeout)
	if !rl.Allow("10.0.0.3") {
		t.Fatalf("expected new client to be allowed")
	}
	if len(rl.limiters) != 1 {
		t.Fatalf("expected idle clients to be evicted, got %d buckets", len(rl.limiters))
	}
	if _, ok := rl.limiters["10.0.0.3"]; !ok {
		t.Fatalf("expected the active client to keep its bucket")
	}
}
