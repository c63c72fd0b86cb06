package types

// Priority selects the bus lane a message is queued on
type Priority int

const (
	// PriorityMain is the lane for commands and requests
	PriorityMain Priority = iota
	// PriorityHigh is drained before PriorityMain; used for progress and status events
	PriorityHigh
)

// String returns the string representation of the priority
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	default:
		return "main"
	}
}
