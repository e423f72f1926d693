package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notesearch/internal/service"
)

// EmbeddingsClient calls the embedding service over HTTP.
// It implements Embedder for the ingester and the search service.
type EmbeddingsClient struct {
	BaseURL      string
	APIToken     string
	ExpectedSize int // Expected vector size for validation
	client       *http.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// All vectors returned are validated against expectedSize.
func NewEmbeddingsClient(baseURL, apiToken string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIToken:     apiToken,
		ExpectedSize: expectedSize,
		client:       newHTTPClient(),
	}
}

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	Text    string `json:"text" validate:"required"`
	IsQuery bool   `json:"isQuery,omitempty"`
}

// EmbedResponse is the body returned by POST /embed.
type EmbedResponse struct {
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
}

// MaxBatchTexts is the largest batch POST /embed-batch accepts. It must
// match the max in EmbedBatchRequest's validate tag.
const MaxBatchTexts = 256

// EmbedBatchRequest is the body of POST /embed-batch.
type EmbedBatchRequest struct {
	Texts   []string `json:"texts" validate:"required,min=1,max=256,dive,required"`
	IsQuery bool     `json:"isQuery,omitempty"`
}

// EmbedBatchResponse is the body returned by POST /embed-batch.
type EmbedBatchResponse struct {
	Vectors    [][]float32 `json:"vectors"`
	Dimensions int         `json:"dimensions"`
}

// Embed encodes one text through POST /embed.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	var resp EmbedResponse
	if err := c.post(ctx, "/embed", EmbedRequest{Text: text, IsQuery: mode == ModeQuery}, &resp); err != nil {
		return nil, err
	}
	if err := c.checkSize(0, resp.Vector); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// EmbedBatch encodes texts through POST /embed-batch.
func (c *EmbeddingsClient) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	var resp EmbedBatchResponse
	if err := c.post(ctx, "/embed-batch", EmbedBatchRequest{Texts: texts, IsQuery: mode == ModeQuery}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Vectors))
	}
	for i, vec := range resp.Vectors {
		if err := c.checkSize(i, vec); err != nil {
			return nil, err
		}
	}
	return resp.Vectors, nil
}

func (c *EmbeddingsClient) checkSize(i int, vec []float32) error {
	if c.ExpectedSize > 0 && len(vec) != c.ExpectedSize {
		return &service.ConfigurationError{
			Setting: "EMBEDDING_DIMENSIONS",
			Message: fmt.Sprintf("embedding %d has size %d, expected %d", i, len(vec), c.ExpectedSize),
		}
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *EmbeddingsClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransport(strings.TrimPrefix(path, "/"), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		statusErr := fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return &service.AuthError{Reason: "embedding service rejected the API token"}
		case transientStatus(resp.StatusCode):
			return service.Transient(strings.TrimPrefix(path, "/"), statusErr)
		default:
			return statusErr
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
