package types

import "fmt"

// SystemAction is a control action applied to the source watcher
type SystemAction string

const (
	SystemActionStart SystemAction = "start"
	SystemActionStop  SystemAction = "stop"
)

// IsValid checks if the system action is valid
func (a SystemAction) IsValid() bool {
	switch a {
	case SystemActionStart, SystemActionStop:
		return true
	default:
		return false
	}
}

// String returns the string representation of the system action
func (a SystemAction) String() string {
	return string(a)
}

// ParseSystemAction parses a string into a SystemAction
func ParseSystemAction(s string) (SystemAction, error) {
	action := SystemAction(s)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid system action: %s", s)
	}
	return action, nil
}
