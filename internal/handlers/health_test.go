package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"notesearch/internal/llm"
)

type staticStatus llm.Status

func (s staticStatus) Status() llm.Status { return llm.Status(s) }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		reporter       StatusReporter
		method         string
		expectedStatus int
		wantBody       string
	}{
		{name: "search service", reporter: nil, method: http.MethodGet, expectedStatus: http.StatusOK, wantBody: "ok"},
		{name: "model loading", reporter: staticStatus(llm.StatusLoading), method: http.MethodGet, expectedStatus: http.StatusServiceUnavailable, wantBody: "loading"},
		{name: "model ready", reporter: staticStatus(llm.StatusOK), method: http.MethodGet, expectedStatus: http.StatusOK, wantBody: "ok"},
		{name: "model failed", reporter: staticStatus(llm.StatusFailed), method: http.MethodGet, expectedStatus: http.StatusServiceUnavailable, wantBody: "failed"},
		{name: "wrong method", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.reporter)

			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("ServeHTTP() status = %v, want %v", w.Code, tt.expectedStatus)
			}
			if tt.wantBody == "" {
				return
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
		})
	}
}
