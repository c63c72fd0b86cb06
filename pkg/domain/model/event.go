package model

import (
	"time"

	"github.com/secmon-lab/notelens/pkg/domain/types"
)

// Event is the envelope broadcast to or answered to subscribers
type Event struct {
	Type      types.EventType     `json:"type"`
	RequestID string              `json:"requestId"`
	Timestamp float64             `json:"timestamp"`
	Status    types.MessageStatus `json:"status"`
	Payload   any                 `json:"payload"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType types.EventType, requestID string, status types.MessageStatus, payload any) *Event {
	return &Event{
		Type:      eventType,
		RequestID: requestID,
		Timestamp: float64(time.Now().UnixMicro()) / 1e6,
		Status:    status,
		Payload:   payload,
	}
}

// ErrorDetails describes a protocol or handler failure
type ErrorDetails struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
	Details map[string]any  `json:"details"`
}

// ErrorPayload is the payload of an error event
type ErrorPayload struct {
	Error ErrorDetails `json:"error"`
}

// NewErrorEvent builds an error event for requestID
func NewErrorEvent(requestID string, code types.ErrorCode, message string, details map[string]any) *Event {
	return NewEvent(types.EventTypeError, requestID, types.MessageStatusError, &ErrorPayload{
		Error: ErrorDetails{Code: code, Message: message, Details: details},
	})
}

// SearchResultItem is the subscriber facing form of a SearchResult
type SearchResultItem struct {
	ID              int64   `json:"id"`
	UUID            string  `json:"uuid"`
	Title           string  `json:"title"`
	Plaintext       string  `json:"plaintext"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SearchResultsPayload is the payload of a search_results event
type SearchResultsPayload struct {
	Results []SearchResultItem `json:"results"`
}

// NewSearchResultsPayload converts ranked documents to their subscriber form
func NewSearchResultsPayload(results []*SearchResult) *SearchResultsPayload {
	items := make([]SearchResultItem, 0, len(results))
	for _, r := range results {
		if r == nil || r.Document == nil {
			continue
		}
		items = append(items, SearchResultItem{
			ID:              r.Document.ID,
			UUID:            r.Document.UUID.String(),
			Title:           r.Document.Title,
			Plaintext:       r.Document.Plaintext,
			SimilarityScore: r.Score,
		})
	}
	return &SearchResultsPayload{Results: items}
}
