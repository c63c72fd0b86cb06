package extractor

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound means the parser script or the ruby interpreter is missing
	ErrNotFound = goerr.New("parser not found")
	// ErrEnv means the ruby environment cannot run the parser
	ErrEnv = goerr.New("ruby environment misconfigured")
	// ErrExec means the parser exited abnormally or timed out
	ErrExec = goerr.New("parser execution failed")
	// ErrOutput means the parser output is missing or malformed
	ErrOutput = goerr.New("parser output is invalid")
	// ErrSourceUnavailable means the Notes database does not exist
	ErrSourceUnavailable = goerr.New("source database not found")
)
