package model

import (
	"sync"

	"github.com/secmon-lab/notelens/pkg/domain/types"
)

// Stats is a frozen view of reconciliation outcome counters
type Stats struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	InTrash   int `json:"in_trash"`
	Errors    int `json:"errors"`
}

// Get returns the counter for category, or 0 for an unknown category
func (s Stats) Get(category types.StatCategory) int {
	switch category {
	case types.StatNew:
		return s.New
	case types.StatModified:
		return s.Modified
	case types.StatUnchanged:
		return s.Unchanged
	case types.StatDeleted:
		return s.Deleted
	case types.StatInTrash:
		return s.InTrash
	case types.StatErrors:
		return s.Errors
	default:
		return 0
	}
}

// StatsCounter accumulates outcome counts for one reconciliation pass
type StatsCounter struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatsCounter returns a zeroed counter
func NewStatsCounter() *StatsCounter {
	return &StatsCounter{}
}

// Increment adds delta to category. Categories outside the fixed set are ignored.
func (c *StatsCounter) Increment(category types.StatCategory, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch category {
	case types.StatNew:
		c.stats.New += delta
	case types.StatModified:
		c.stats.Modified += delta
	case types.StatUnchanged:
		c.stats.Unchanged += delta
	case types.StatDeleted:
		c.stats.Deleted += delta
	case types.StatInTrash:
		c.stats.InTrash += delta
	case types.StatErrors:
		c.stats.Errors += delta
	}
}

// SetTotal records the number of documents seen by the pass
func (c *StatsCounter) SetTotal(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Total = total
}

// Reset zeroes every counter
func (c *StatsCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}

// Snapshot returns a copy of the current counters
func (c *StatsCounter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
