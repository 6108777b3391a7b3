package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrUnavailable indicates the embedding model failed to initialize or
// produced invalid output. An operation that needs embeddings cannot
// continue; the caller decides whether to retry or report.
var ErrUnavailable = errors.New("embedding unavailable")

// probeText is embedded once to measure the model's output dimension.
const probeText = "dimension_check"

// Provider wraps an Embedder and validates its output: the dimension is
// measured lazily on first use and cached for the process lifetime, and
// every returned vector is checked against it.
type Provider struct {
	embedder Embedder
	logger   *zap.Logger

	mu  sync.Mutex
	dim int
}

// NewProvider creates a provider around the given embedder.
// The embedder is owned by the caller; Close releases it.
func NewProvider(embedder Embedder, logger *zap.Logger) *Provider {
	return &Provider{embedder: embedder, logger: logger}
}

// Dimension returns the embedding dimension, probing the model on first call.
func (p *Provider) Dimension(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dim > 0 {
		return p.dim, nil
	}
	vec, err := p.embedder.Embed(ctx, probeText)
	if err != nil {
		return 0, fmt.Errorf("%w: dimension probe failed: %v", ErrUnavailable, err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: dimension probe returned empty vector", ErrUnavailable)
	}
	p.dim = len(vec)
	p.logger.Info("embedding dimension detected", zap.Int("dimension", p.dim))
	return p.dim, nil
}

// EmbedQuery embeds a single query text and validates the vector length.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	dim, err := p.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, expected %d", ErrUnavailable, len(vec), dim)
	}
	return vec, nil
}

// EmbedDocuments embeds texts in one batch and validates count and dimensions.
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	dim, err := p.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed batch: %v", ErrUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: batch returned %d vectors for %d texts", ErrUnavailable, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrUnavailable, i, len(vec), dim)
		}
	}
	return vecs, nil
}

// Close releases the underlying embedder.
func (p *Provider) Close() error {
	return p.embedder.Close()
}
