// Package openai implements the similarity provider on top of the OpenAI
// Embeddings API. Two texts are embedded in one request and compared by
// cosine similarity, mapped into [0,1].
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI-backed similarity provider.
// It implements the similarity.Provider interface.
type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// Config is the configuration for the OpenAI similarity provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the embedding model name. Defaults to text-embedding-ada-002.
	Model string

	// BaseURL overrides the API base URL (optional, for compatible APIs).
	BaseURL string
}

// NewClient creates a new OpenAI similarity client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai similarity: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		// UnmarshalText is the library's name-to-enum path; it maps
		// unrecognized names to Unknown without an error.
		if err := model.UnmarshalText([]byte(cfg.Model)); err != nil {
			return nil, fmt.Errorf("openai similarity: resolve model %q: %w", cfg.Model, err)
		}
		if model == openai.Unknown {
			return nil, fmt.Errorf("openai similarity: unknown embedding model %q", cfg.Model)
		}
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Similarity embeds both texts and returns their cosine similarity mapped
// to [0,1].
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{a, b},
		Model: c.model,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Data) < 2 {
		return 0, errors.New("openai similarity: incomplete embedding response")
	}

	cos := cosine(resp.Data[0].Embedding, resp.Data[1].Embedding)
	// Cosine is in [-1,1]; shift into the engine's [0,1] relevance range.
	return (cos + 1) / 2, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
