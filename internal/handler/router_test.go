package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdf-annotation-sync/internal/service"
	"pdf-annotation-sync/internal/validation"
	"pdf-annotation-sync/pkg/logger"

	"github.com/gorilla/mux"
)

func TestNewRouter_Health(t *testing.T) {
	router := newTestRouter(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	nop := logger.Nop()
	svc := service.NewHighlightService(nil, validation.New(), nop)
	router := NewRouter(NewHighlightHandler(svc, nop, 0), RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/highlights", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestNewRouter_AppliesMiddlewares(t *testing.T) {
	nop := logger.Nop()
	svc := service.NewHighlightService(nil, validation.New(), nop)

	called := false
	mark := mux.MiddlewareFunc(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	})
	router := NewRouter(NewHighlightHandler(svc, nop, 0), RouterOptions{Middlewares: []mux.MiddlewareFunc{mark}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !called {
		t.Fatalf("expected middleware to run")
	}
}
