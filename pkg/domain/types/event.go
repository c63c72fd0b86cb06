package types

// EventType is the type of an outbound subscriber event
type EventType string

const (
	EventTypeSetupProgress EventType = "setup_progress"
	EventTypeSetupComplete EventType = "setup_complete"
	EventTypeSearchResults EventType = "search_results"
	EventTypePong          EventType = "pong"
	EventTypeError         EventType = "error"
)

// RequestType is the type of an inbound subscriber request
type RequestType string

const (
	RequestTypeSearch     RequestType = "search_request"
	RequestTypeSetupStart RequestType = "setup_start"
	RequestTypePing       RequestType = "ping"
)

// IsValid checks if the request type is known
func (r RequestType) IsValid() bool {
	switch r {
	case RequestTypeSearch, RequestTypeSetupStart, RequestTypePing:
		return true
	default:
		return false
	}
}

// MessageStatus is the status field of an outbound event
type MessageStatus string

const (
	MessageStatusSuccess    MessageStatus = "success"
	MessageStatusError      MessageStatus = "error"
	MessageStatusInProgress MessageStatus = "in_progress"
)

// ErrorCode classifies protocol level failures reported to a subscriber
type ErrorCode string

const (
	ErrorCodeInvalidMessage  ErrorCode = "invalid_message"
	ErrorCodeUnknownType     ErrorCode = "unknown_type"
	ErrorCodeHandlerError    ErrorCode = "handler_error"
	ErrorCodeProcessingError ErrorCode = "processing_error"
)
