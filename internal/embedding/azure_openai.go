package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"cybersafe/internal/logger"
)

// AzureConfig addresses an Azure OpenAI embedding deployment.
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Deployment string

	// Dimension is the expected vector size. Zero means Dimension.
	Dimension int

	// HTTPClient overrides the transport used by the OpenAI client.
	HTTPClient openai.HTTPDoer
}

// AzureOpenAICreator implements Creator with an Azure OpenAI deployment.
type AzureOpenAICreator struct {
	client     *openai.Client
	deployment string
	dimension  int
	log        zerolog.Logger
}

// NewAzureOpenAICreator builds a Creator. Key, endpoint and deployment are required.
func NewAzureOpenAICreator(cfg AzureConfig) (*AzureOpenAICreator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Deployment) == "" {
		return nil, ErrMissingCredentials
	}

	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = Dimension
	}

	return &AzureOpenAICreator{
		client:     openai.NewClientWithConfig(clientCfg),
		deployment: deployment,
		dimension:  dimension,
		log:        logger.WithComponent("embedding-azure"),
	}, nil
}

// Embed implements Creator.
func (c *AzureOpenAICreator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.deployment),
	})
	if err != nil {
		c.log.Error().Err(err).Str("deployment", c.deployment).Msg("Embedding request failed")
		return nil, fmt.Errorf("embedding: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}

	vec := resp.Data[0].Embedding
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dimension)
	}

	c.log.Debug().
		Int("text_length", len(text)).
		Int("tokens", resp.Usage.TotalTokens).
		Msg("Embedding created")
	return vec, nil
}
