package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"notesearch/internal/contextutil"
)

func TestLoggerMiddleware(t *testing.T) {
	var capturedCtx context.Context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCtx = r.Context()
		w.WriteHeader(http.StatusOK)
	})

	middleware := LoggerMiddleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("LoggerMiddleware() status = %v, want %v", w.Code, http.StatusOK)
	}

	// Check that logger was added to context
	if capturedCtx == nil {
		t.Fatal("LoggerMiddleware() should capture context")
	}
	if capturedCtx.Value(contextutil.LoggerKey()) == nil {
		t.Error("LoggerMiddleware() should add logger to context")
	}
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		statusCode int
	}{
		{name: "regular request", method: http.MethodPost, path: "/search", statusCode: http.StatusOK},
		{name: "health check", method: http.MethodGet, path: "/health", statusCode: http.StatusOK},
		{name: "failing health check", method: http.MethodGet, path: "/health", statusCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			middleware := RequestLogger(handler)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			middleware.ServeHTTP(w, req)

			if w.Code != tt.statusCode {
				t.Errorf("RequestLogger() status = %v, want %v", w.Code, tt.statusCode)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	middleware := CORS(handler)

	t.Run("echoes origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		middleware.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/search", nil)
		w := httptest.NewRecorder()
		middleware.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %v, want %v", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
	})
}

func TestAuth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		token      string
		path       string
		header     string
		wantStatus int
	}{
		{name: "valid token", token: "secret", path: "/search", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "wrong token", token: "secret", path: "/search", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", token: "secret", path: "/embed", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", token: "secret", path: "/embed", header: "Basic secret", wantStatus: http.StatusUnauthorized},
		{name: "unconfigured token rejects", token: "", path: "/embed", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "health is public", token: "secret", path: "/health", wantStatus: http.StatusOK},
		{name: "docs are public", token: "secret", path: "/docs/index.html", wantStatus: http.StatusOK},
		{name: "prefix is not public", token: "secret", path: "/healthz", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			Auth(tt.token)(handler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Auth() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}
