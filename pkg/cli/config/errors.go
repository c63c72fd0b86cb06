package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound      = goerr.New("configuration file not found")
	ErrInvalidConfig       = goerr.New("invalid configuration")
	ErrInvalidBackend      = goerr.New("invalid storage backend")
	ErrInvalidProvider     = goerr.New("invalid embedding provider")
	ErrMissingAPIKey       = goerr.New("OpenAI API key is required")
	ErrMissingProjectID    = goerr.New("Gemini project ID is required")
	ErrInvalidDuration     = goerr.New("invalid duration")
	ErrInvalidAttemptCount = goerr.New("extraction attempts must be positive")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	SectionKey    = "section"
	FieldKey      = "field"
)
