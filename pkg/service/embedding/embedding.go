package embedding

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

// DefaultMaxInputChars keeps inputs well below the 8191 token limit of the
// OpenAI embedding models
const DefaultMaxInputChars = 24000

var (
	ErrEmptyEmbedding    = goerr.New("no embedding returned")
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")
	ErrLLMClientRequired = goerr.New("LLM client is required")
	ErrInvalidDimension  = goerr.New("embedding dimension must be positive")
)

// Service generates embeddings through a gollem LLM client
type Service struct {
	llmClient     gollem.LLMClient
	dimension     int
	maxInputChars int
}

var _ interfaces.Embedder = &Service{}

// Option is a functional option for Service configuration
type Option func(*Service)

// WithDimension sets the vector dimension requested from the model
func WithDimension(dim int) Option {
	return func(s *Service) {
		s.dimension = dim
	}
}

// WithMaxInputChars sets how many characters of input are embedded
func WithMaxInputChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInputChars = n
		}
	}
}

// New creates a new embedding service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.Wrap(ErrLLMClientRequired, "failed to create embedding service")
	}

	s := &Service{
		llmClient:     llmClient,
		dimension:     model.DefaultEmbeddingDimension,
		maxInputChars: DefaultMaxInputChars,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dimension <= 0 {
		return nil, goerr.Wrap(ErrInvalidDimension, "failed to create embedding service", goerr.V("dimension", s.dimension))
	}

	return s, nil
}

// Dimension returns the length of vectors produced by Embed
func (s *Service) Dimension() int {
	return s.dimension
}

// Embed returns the embedding vector of text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(strings.TrimSpace(text), s.maxInputChars)
	if input == "" {
		// the embedding APIs reject empty input
		input = " "
	}

	embeddings, err := s.llmClient.GenerateEmbedding(ctx, s.dimension, []string{input})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "failed to generate embedding")
	}
	if len(embeddings[0]) != s.dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "unexpected embedding size",
			goerr.V("expected", s.dimension),
			goerr.V("actual", len(embeddings[0])),
		)
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
