package collaborators

import (
	"context"
	"fmt"

	"github.com/coastline/webextract/internal/logger"
	"github.com/coastline/webextract/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// EmbeddingProvider is the C10 collaborator adapter producing vector
// embeddings for stored content, adapted from the genai-backed Gemini
// client used elsewhere for text generation.
type EmbeddingProvider struct {
	client *genai.Client
	model  string
}

// NewEmbeddingProvider builds a provider for the given API key and model
// (defaults to "text-embedding-004").
func NewEmbeddingProvider(ctx context.Context, apiKey, model string) (*EmbeddingProvider, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("collaborators: create genai client: %w", err)
	}
	return &EmbeddingProvider{client: client, model: model}, nil
}

// Embed returns the embedding vector for text.
func (e *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		logger.Warn("collaborators: embed content failed", zap.String("model", e.model), zap.Error(err))
		return nil, fmt.Errorf("collaborators: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("collaborators: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

var _ models.EmbeddingProvider = (*EmbeddingProvider)(nil)
