package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/service/embedding"
	"github.com/urfave/cli/v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Embedding holds CLI flags for the embedding model
type Embedding struct {
	provider       string
	openaiAPIKey   string `masq:"secret"`
	geminiProject  string
	geminiLocation string
	dimension      int
}

// Flags returns CLI flags for embedding configuration
func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (openai or gemini)",
			Value:       ProviderOpenAI,
			Category:    "Embedding",
			Sources:     cli.EnvVars("NOTELENS_EMBEDDING_PROVIDER"),
			Destination: &e.provider,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "Embedding",
			Sources:     cli.EnvVars("NOTELENS_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &e.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Embedding",
			Sources:     cli.EnvVars("NOTELENS_GEMINI_PROJECT"),
			Destination: &e.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Category:    "Embedding",
			Sources:     cli.EnvVars("NOTELENS_GEMINI_LOCATION"),
			Destination: &e.geminiLocation,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension",
			Value:       model.DefaultEmbeddingDimension,
			Category:    "Embedding",
			Sources:     cli.EnvVars("NOTELENS_EMBEDDING_DIMENSION"),
			Destination: &e.dimension,
		},
	}
}

// LogAttrs returns log attributes for the embedding configuration
func (e *Embedding) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", e.provider),
		slog.Bool("api_key_set", e.openaiAPIKey != ""),
		slog.String("gemini_project", e.geminiProject),
		slog.String("gemini_location", e.geminiLocation),
		slog.Int("dimension", e.dimension),
	}
}

// Dimension returns the configured vector dimension
func (e *Embedding) Dimension() int {
	return e.dimension
}

func (e *Embedding) applyFile(c flagSetter, f *EmbeddingFile) {
	setString(c, "embedding-provider", &e.provider, f.Provider)
	setString(c, "gemini-project", &e.geminiProject, f.GeminiProject)
	setString(c, "gemini-location", &e.geminiLocation, f.GeminiLocation)
	setInt(c, "embedding-dimension", &e.dimension, f.Dimension)
}

// Client creates the gollem client of the configured provider
func (e *Embedding) Client(ctx context.Context) (gollem.LLMClient, error) {
	switch e.provider {
	case ProviderOpenAI:
		if e.openaiAPIKey == "" {
			return nil, goerr.Wrap(ErrMissingAPIKey, "failed to configure embedding")
		}
		client, err := openai.New(ctx, e.openaiAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case ProviderGemini:
		if e.geminiProject == "" {
			return nil, goerr.Wrap(ErrMissingProjectID, "failed to configure embedding")
		}
		client, err := gemini.New(ctx, e.geminiProject, e.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidProvider, "failed to configure embedding", goerr.V("provider", e.provider))
	}
}

// Configure creates the embedding service
func (e *Embedding) Configure(ctx context.Context) (*embedding.Service, error) {
	client, err := e.Client(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := embedding.New(client, embedding.WithDimension(e.dimension))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding service")
	}
	return svc, nil
}
