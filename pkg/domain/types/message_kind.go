package types

// MessageKind names a bus payload variant. It is used for logging and routing
// diagnostics; dispatch itself is driven by the payload type.
type MessageKind string

const (
	MessageKindSearchRequest MessageKind = "search_request"
	MessageKindSourceChanged MessageKind = "source_changed"
	MessageKindSystemControl MessageKind = "system_control"
	MessageKindSetupStart    MessageKind = "setup_start"
	MessageKindSetupProgress MessageKind = "setup_progress"
	MessageKindSetupComplete MessageKind = "setup_complete"
)

// String returns the string representation of the message kind
func (k MessageKind) String() string {
	return string(k)
}
