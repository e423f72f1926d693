package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notesearch/internal/service"
)

func TestGRPCAddress(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
		wantTLS  bool
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://qdrant:9000",
			wantHost: "qdrant",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334,
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost",
			wantPort: 6334,
		},
		{
			name:     "https enables TLS",
			urlStr:   "https://cloud.qdrant.io:6333",
			wantHost: "cloud.qdrant.io",
			wantPort: 6334,
			wantTLS:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := grpcAddress(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Fatal("grpcAddress() expected error")
				}
				if !service.IsConfiguration(err) {
					t.Errorf("grpcAddress() error = %v, want ConfigurationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcAddress() error = %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %v, want %v", port, tt.wantPort)
			}
			if useTLS != tt.wantTLS {
				t.Errorf("useTLS = %v, want %v", useTLS, tt.wantTLS)
			}
		})
	}
}

func TestNewQdrantStore_RequiresCollection(t *testing.T) {
	_, err := NewQdrantStore("http://localhost:6333", "", "")
	if !service.IsConfiguration(err) {
		t.Errorf("NewQdrantStore() error = %v, want ConfigurationError", err)
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		actual  int
		cosine  bool
		dims    int
		wantErr bool
	}{
		{name: "match", actual: 384, cosine: true, dims: 384},
		{name: "size mismatch", actual: 768, cosine: true, dims: 384, wantErr: true},
		{name: "wrong distance", actual: 384, cosine: false, dims: 384, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSchema(tt.actual, tt.cosine, tt.dims)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !service.IsConfiguration(err) {
				t.Errorf("validateSchema() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestBuildQdrantFilter(t *testing.T) {
	if f := buildQdrantFilter(nil); f != nil {
		t.Errorf("buildQdrantFilter(nil) = %v, want nil", f)
	}
	if f := buildQdrantFilter(&Filter{}); f != nil {
		t.Errorf("buildQdrantFilter(empty) = %v, want nil", f)
	}

	f := buildQdrantFilter(&Filter{Kinds: []string{"notes", "books"}, Heading: "Intro"})
	if f == nil {
		t.Fatal("buildQdrantFilter() = nil")
	}
	if len(f.Must) != 2 {
		t.Fatalf("len(Must) = %d, want 2", len(f.Must))
	}
	kindCond := f.Must[0].GetField()
	if kindCond.GetKey() != FieldKind {
		t.Errorf("first condition key = %q, want %q", kindCond.GetKey(), FieldKind)
	}
	if got := kindCond.GetMatch().GetKeywords().GetStrings(); len(got) != 2 {
		t.Errorf("kind keywords = %v, want 2 entries", got)
	}
	headingCond := f.Must[1].GetField()
	if headingCond.GetKey() != FieldTopHeading {
		t.Errorf("second condition key = %q, want %q", headingCond.GetKey(), FieldTopHeading)
	}
	if got := headingCond.GetMatch().GetKeyword(); got != "Intro" {
		t.Errorf("heading keyword = %q, want Intro", got)
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	payload := Payload{
		Kind:        "notes",
		TopHeading:  "Intro",
		DocID:       "file:markdown/a.md",
		ChunkID:     "0b6f6c1e-5f0b-5b43-9a54-5b0ac1a0c3b1",
		Title:       "A",
		HeadingPath: []string{"Intro", "Sub"},
		Text:        "hello",
		ContentHash: "abc",
	}
	values, err := qdrant.TryValueMap(payload.Map())
	if err != nil {
		t.Fatalf("TryValueMap() error = %v", err)
	}

	got := convertPayloadToMap(values)
	if got[FieldKind] != "notes" {
		t.Errorf("kind = %v", got[FieldKind])
	}
	path, ok := got[FieldHeadingPath].([]any)
	if !ok || len(path) != 2 || path[1] != "Sub" {
		t.Errorf("heading_path = %#v", got[FieldHeadingPath])
	}
	if _, ok := got[FieldURL]; ok {
		t.Error("empty url should be omitted")
	}
}

func TestPointIDString(t *testing.T) {
	if got := pointIDString(nil); got != "" {
		t.Errorf("pointIDString(nil) = %q", got)
	}
	if got := pointIDString(qdrant.NewIDNum(42)); got != "42" {
		t.Errorf("pointIDString(num) = %q, want 42", got)
	}
	id := "5c56c793-69f3-4fbf-87e6-c4bf54c28c26"
	if got := pointIDString(qdrant.NewID(id)); got != id {
		t.Errorf("pointIDString(uuid) = %q, want %q", got, id)
	}
}

func TestClassifyGRPC(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{name: "nil", err: nil},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), wantTransient: true},
		{name: "wrapped unavailable", err: fmt.Errorf("upsert: %w", status.Error(codes.Unavailable, "down")), wantTransient: true},
		{name: "resource exhausted", err: status.Error(codes.ResourceExhausted, "busy"), wantTransient: true},
		{name: "deadline", err: context.DeadlineExceeded, wantTransient: true},
		{name: "invalid argument", err: status.Error(codes.InvalidArgument, "bad vector")},
		{name: "not found", err: status.Error(codes.NotFound, "no collection")},
		{name: "canceled", err: context.Canceled},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGRPC("op", tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("classifyGRPC(nil) = %v", got)
				}
				return
			}
			if service.IsTransient(got) != tt.wantTransient {
				t.Errorf("IsTransient(classifyGRPC()) = %v, want %v", service.IsTransient(got), tt.wantTransient)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classifyGRPC() should wrap original error")
			}
		})
	}
}
