package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// NoteTimeLayout is the timestamp layout written by the extraction tool
const NoteTimeLayout = "2006-01-02 15:04:05 -0700"

// ErrInvalidTimestamp is returned when a timestamp matches no known layout
var ErrInvalidTimestamp = goerr.New("invalid timestamp")

// ParseNoteTime parses a timezone-aware timestamp in the extraction tool
// layout, falling back to RFC 3339.
func ParseNoteTime(s string) (time.Time, error) {
	if t, err := time.Parse(NoteTimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, goerr.Wrap(ErrInvalidTimestamp, "failed to parse timestamp", goerr.V("value", s))
}
