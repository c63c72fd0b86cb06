package ws

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrClosed is returned once the gateway stopped accepting subscribers
	ErrClosed = goerr.New("gateway is closed")
	// ErrSlowSubscriber is reported when a subscriber outbox overflows
	ErrSlowSubscriber = goerr.New("subscriber outbox is full")
	// ErrInvalidPayload is returned when a request payload cannot be decoded
	ErrInvalidPayload = goerr.New("invalid request payload")
)
