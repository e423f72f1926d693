package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notesearch/internal/service"
)

// Encoder runs the embedding model and returns per-token vectors.
type Encoder interface {
	// Load prepares the model. It is called once per process.
	Load(ctx context.Context) error
	// Encode returns one token-embedding matrix per input text.
	Encode(ctx context.Context, texts []string) ([][][]float32, error)
}

// LlamaEncoder encodes through a llama.cpp server started with --pooling none,
// so /embedding returns token-level vectors.
type LlamaEncoder struct {
	baseURL string
	model   string
	loader  *ModelLoader
	client  *http.Client
}

// NewLlamaEncoder creates an encoder. When loader is non-nil the model is
// loaded through the server's model router before first use.
func NewLlamaEncoder(baseURL, model string, loader *ModelLoader) *LlamaEncoder {
	return &LlamaEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		loader:  loader,
		client:  newHTTPClient(),
	}
}

// llamaEmbeddingRequest is the /embedding request body.
type llamaEmbeddingRequest struct {
	Content []string `json:"content"`
}

// llamaEmbeddingItem is one entry of the /embedding response.
type llamaEmbeddingItem struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"`
}

// Load loads the model and verifies the server answers an embedding request.
func (e *LlamaEncoder) Load(ctx context.Context) error {
	if e.loader != nil {
		if err := e.loader.LoadModel(ctx, e.model, []string{"--embedding", "--pooling", "none"}); err != nil {
			return err
		}
	}
	if _, err := e.Encode(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	return nil
}

// Encode posts all texts in one request.
func (e *LlamaEncoder) Encode(ctx context.Context, texts []string) ([][][]float32, error) {
	body, err := json.Marshal(llamaEmbeddingRequest{Content: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransport("encode", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		statusErr := fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
		if transientStatus(resp.StatusCode) {
			return nil, service.Transient("encode", statusErr)
		}
		return nil, statusErr
	}

	var items []llamaEmbeddingItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(items) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(items))
	}

	out := make([][][]float32, len(texts))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// classifyTransport marks request failures other than cancellation as transient.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return service.Transient(op, fmt.Errorf("failed to send request: %w", err))
}
