package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"notesearch/internal/contextutil"
	"notesearch/internal/service"
)

// Status is the externally observable model state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Generator embeds text with a process-wide encoder that is loaded once.
// Calls made before loading completes fail fast with service.ErrNotReady.
type Generator struct {
	encoder  Encoder
	prefixes Prefixes
	dims     int

	once    sync.Once
	mu      sync.RWMutex
	status  Status
	loadErr error
}

// NewGenerator creates a generator. dims is the expected output size; zero skips the check.
func NewGenerator(encoder Encoder, prefixes Prefixes, dims int) *Generator {
	return &Generator{
		encoder:  encoder,
		prefixes: prefixes,
		dims:     dims,
		status:   StatusLoading,
	}
}

// Load loads the encoder exactly once. Later calls return the first result.
func (g *Generator) Load(ctx context.Context) error {
	g.once.Do(func() {
		logger := contextutil.LoggerFromContext(ctx)
		logger.InfoContext(ctx, "loading embedding model")

		err := g.encoder.Load(ctx)

		g.mu.Lock()
		defer g.mu.Unlock()
		if err != nil {
			g.status = StatusFailed
			g.loadErr = fmt.Errorf("failed to load embedding model: %w", err)
			logger.ErrorContext(ctx, "embedding model failed to load", "error", err)
			return
		}
		g.status = StatusOK
		logger.InfoContext(ctx, "embedding model ready")
	})

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loadErr
}

// Start loads the encoder in the background. The returned channel receives
// the load result once.
func (g *Generator) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- g.Load(ctx)
	}()
	return errc
}

// Status returns the current model state.
func (g *Generator) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Ready reports whether the model has loaded successfully.
func (g *Generator) Ready() bool {
	return g.Status() == StatusOK
}

// Dimensions returns the configured vector size.
func (g *Generator) Dimensions() int {
	return g.dims
}

// Embed encodes one text.
func (g *Generator) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch prefixes, encodes, mean-pools and normalizes texts.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if !g.Ready() {
		return nil, service.ErrNotReady
	}
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = g.prefixes.Apply(text, mode)
	}

	tokenSets, err := g.encoder.Encode(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	if len(tokenSets) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d results for %d texts", len(tokenSets), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, tokens := range tokenSets {
		pooled, err := MeanPool(tokens)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		if g.dims > 0 && len(pooled) != g.dims {
			return nil, &service.ConfigurationError{
				Setting: "EMBEDDING_DIMENSIONS",
				Message: fmt.Sprintf("model produced %d dimensions, expected %d", len(pooled), g.dims),
			}
		}
		vectors[i] = Normalize(pooled)
	}

	return vectors, nil
}

// validateTexts rejects the whole batch on the first bad entry.
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return &service.ValidationError{Field: "texts", Message: "must not be empty"}
	}
	for i, text := range texts {
		if !utf8.ValidString(text) {
			return &service.ValidationError{Field: fmt.Sprintf("texts[%d]", i), Message: "must be valid UTF-8"}
		}
		if strings.TrimSpace(text) == "" {
			return &service.ValidationError{Field: fmt.Sprintf("texts[%d]", i), Message: "must not be blank"}
		}
	}
	return nil
}
