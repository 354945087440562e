package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/models"
)

// NewEmbedder creates a langchaingo embedder for the configured provider.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("base_url", llmConfig.BaseURL).
		Str("embedding_model", llmConfig.Model).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch llmConfig.Provider {
	case "", "openai":
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		client = llm
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}

	return embeddings.NewEmbedder(client)
}

// Provider turns text into fixed-length vectors. Query embedding never fails:
// any provider error degrades to a zero vector of the configured length.
type Provider struct {
	embedder   embeddings.Embedder
	dimensions int
}

func NewProvider(embedder embeddings.Embedder, dimensions int) *Provider {
	return &Provider{embedder: embedder, dimensions: dimensions}
}

func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed returns the provider's vector for text, or a zero vector on failure.
func (p *Provider) Embed(ctx context.Context, text string) []float32 {
	vec, err := p.embedQuery(ctx, text)
	if err != nil {
		log.Error().Err(err).Int("dimensions", p.dimensions).Msg("Error getting embedding")
		return make([]float32, p.dimensions)
	}
	return vec
}

func (p *Provider) embedQuery(ctx context.Context, text string) (vec []float32, err error) {
	// langchaingo indexes the first embedding without checking the response size.
	defer func() {
		if r := recover(); r != nil {
			vec, err = nil, fmt.Errorf("malformed embedding response: %v", r)
		}
	}()

	vec, err = p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != p.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), p.dimensions)
	}
	return vec, nil
}

// EmbedChunks fills the Embedding of every page. Unlike Embed it reports
// failures, since storing degraded vectors would poison the index.
func (p *Provider) EmbedChunks(ctx context.Context, pages []models.SitePage) error {
	if len(pages) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil
	}

	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Title + "\n" + page.Content
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(pages) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(pages))
	}
	for i := range pages {
		if len(vectors[i]) != p.dimensions {
			return fmt.Errorf("chunk %d embedding has %d dimensions, expected %d", i, len(vectors[i]), p.dimensions)
		}
		pages[i].Embedding = vectors[i]
	}
	return nil
}
