package interfaces

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is returned by repositories when the target document does not exist
	ErrNotFound = goerr.New("not found")
	// ErrUnavailable is returned when a backing service is not ready
	ErrUnavailable = goerr.New("service unavailable")
)
