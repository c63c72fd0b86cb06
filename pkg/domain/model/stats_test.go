package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/domain/model"
	"github.com/secmon-lab/notelens/pkg/domain/types"
)

func TestStatsCounter(t *testing.T) {
	t.Run("increments known categories", func(t *testing.T) {
		c := model.NewStatsCounter()
		c.SetTotal(10)
		c.Increment(types.StatNew, 2)
		c.Increment(types.StatModified, 1)
		c.Increment(types.StatUnchanged, 3)
		c.Increment(types.StatDeleted, 1)
		c.Increment(types.StatInTrash, 2)
		c.Increment(types.StatErrors, 1)

		gt.Value(t, c.Snapshot()).Equal(model.Stats{
			Total: 10, New: 2, Modified: 1, Unchanged: 3, Deleted: 1, InTrash: 2, Errors: 1,
		})
	})

	t.Run("unknown category is a no-op", func(t *testing.T) {
		c := model.NewStatsCounter()
		c.Increment(types.StatCategory("skipped"), 5)
		gt.Value(t, c.Snapshot()).Equal(model.Stats{})
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		c := model.NewStatsCounter()
		c.Increment(types.StatNew, 1)
		snap := c.Snapshot()
		c.Increment(types.StatNew, 1)

		gt.Value(t, snap.New).Equal(1)
		gt.Value(t, c.Snapshot().New).Equal(2)
	})

	t.Run("reset zeroes counters", func(t *testing.T) {
		c := model.NewStatsCounter()
		c.Increment(types.StatErrors, 4)
		c.Reset()
		gt.Value(t, c.Snapshot()).Equal(model.Stats{})
	})
}

func TestStats_Get(t *testing.T) {
	s := model.Stats{New: 1, Modified: 2, Unchanged: 3, Deleted: 4, InTrash: 5, Errors: 6}
	gt.Value(t, s.Get(types.StatDeleted)).Equal(4)
	gt.Value(t, s.Get(types.StatCategory("other"))).Equal(0)
}
