package model

import "github.com/secmon-lab/notelens/pkg/domain/types"

// SetupProgress is a point-in-time copy of the setup tracker state. It doubles
// as the priority-lane bus payload that carries it to subscribers.
type SetupProgress struct {
	Stage          types.SetupStage  `json:"stage"`
	Status         types.SetupStatus `json:"status_type"`
	TotalItems     *int              `json:"total_items,omitempty"`
	ProcessedItems *int              `json:"processed_items,omitempty"`
	CurrentItem    *string           `json:"current_item,omitempty"`
	Message        string            `json:"message,omitempty"`
	Stats          Stats             `json:"stats"`
}

// Clone returns a copy that shares no pointers with p
func (p *SetupProgress) Clone() *SetupProgress {
	if p == nil {
		return nil
	}
	c := *p
	if p.TotalItems != nil {
		v := *p.TotalItems
		c.TotalItems = &v
	}
	if p.ProcessedItems != nil {
		v := *p.ProcessedItems
		c.ProcessedItems = &v
	}
	if p.CurrentItem != nil {
		v := *p.CurrentItem
		c.CurrentItem = &v
	}
	return &c
}

// SetupComplete is the final outcome of a setup run
type SetupComplete struct {
	Success bool   `json:"success"`
	Stats   *Stats `json:"stats,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WatcherStatus is the reply to a SystemControl request
type WatcherStatus struct {
	Running bool   `json:"running"`
	Path    string `json:"path"`
}
