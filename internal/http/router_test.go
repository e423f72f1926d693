package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"notesearch/internal/llm"
	"notesearch/internal/search"
	search_mocks "notesearch/internal/search/mocks"
)

type stubGenerator struct{}

func (stubGenerator) Embed(ctx context.Context, text string, mode llm.Mode) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubGenerator) EmbedBatch(ctx context.Context, texts []string, mode llm.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubGenerator) Dimensions() int { return 2 }

type loadingStatus struct{}

func (loadingStatus) Status() llm.Status { return llm.StatusLoading }

func TestNewEmbedRouter_Routes(t *testing.T) {
	router := NewEmbedRouter(&EmbedDeps{
		Generator: stubGenerator{},
		Status:    loadingStatus{},
		APIToken:  "secret",
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		auth       bool
		wantStatus int
	}{
		{name: "health while loading", method: http.MethodGet, path: "/health", wantStatus: http.StatusServiceUnavailable},
		{name: "embed", method: http.MethodPost, path: "/embed", body: `{"text":"hi"}`, auth: true, wantStatus: http.StatusOK},
		{name: "embed batch", method: http.MethodPost, path: "/embed-batch", body: `{"texts":["a","b"]}`, auth: true, wantStatus: http.StatusOK},
		{name: "embed without token", method: http.MethodPost, path: "/embed", body: `{"text":"hi"}`, wantStatus: http.StatusUnauthorized},
		{name: "wrong method", method: http.MethodGet, path: "/embed", auth: true, wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/nope", auth: true, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer secret")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewSearchRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := search_mocks.NewMockEngine(ctrl)
	engine.EXPECT().Search(gomock.Any(), gomock.Any()).Return(search.Response{Query: "q"}, nil)

	router := NewSearchRouter(&SearchDeps{Engine: engine, APIToken: "secret"})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		auth       bool
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "search", method: http.MethodPost, path: "/search", body: `{"query":"q"}`, auth: true, wantStatus: http.StatusOK},
		{name: "search without token", method: http.MethodPost, path: "/search", body: `{"query":"q"}`, wantStatus: http.StatusUnauthorized},
		{name: "invalid body", method: http.MethodPost, path: "/search", body: `{`, auth: true, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer secret")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}
