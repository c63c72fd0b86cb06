package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// Setup errors
	ErrSetupInProgress      = goerr.New("setup is already running")
	ErrServicesUnavailable  = goerr.New("required services unavailable")
	ErrEmptyExtraction      = goerr.New("extraction returned no notes")
	ErrUnsupportedAction    = goerr.New("unsupported system action")
	ErrWatcherNotConfigured = goerr.New("watcher is not configured")

	// Reply errors
	ErrUnexpectedReply = goerr.New("unexpected reply type")
)

// Context keys for error values
const (
	UUIDKey  = "uuid"
	StageKey = "stage"
)
