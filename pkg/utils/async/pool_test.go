package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/utils/async"
)

func TestPool(t *testing.T) {
	t.Run("returns task error", func(t *testing.T) {
		pool := async.NewPool(1)
		defer pool.Close()

		sentinel := errors.New("failed")
		done, err := pool.Submit(t.Context(), func(ctx context.Context) error {
			return sentinel
		})
		gt.NoError(t, err).Required()
		gt.Error(t, <-done).Is(sentinel)
	})

	t.Run("recovers panic as error", func(t *testing.T) {
		pool := async.NewPool(1)
		defer pool.Close()

		done, err := pool.Submit(t.Context(), func(ctx context.Context) error {
			panic("unexpected")
		})
		gt.NoError(t, err).Required()
		gt.Error(t, <-done)
	})

	t.Run("never runs more than size tasks at once", func(t *testing.T) {
		pool := async.NewPool(1)
		defer pool.Close()

		var running, maxRunning atomic.Int32
		var results []<-chan error
		for range 3 {
			done, err := pool.Submit(t.Context(), func(ctx context.Context) error {
				n := running.Add(1)
				for {
					cur := maxRunning.Load()
					if n <= cur || maxRunning.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			gt.NoError(t, err).Required()
			results = append(results, done)
		}
		for _, done := range results {
			gt.NoError(t, <-done)
		}
		gt.Number(t, maxRunning.Load()).Equal(1)
	})

	t.Run("close waits for in-flight work and rejects new work", func(t *testing.T) {
		pool := async.NewPool(1)

		var finished atomic.Bool
		_, err := pool.Submit(t.Context(), func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		})
		gt.NoError(t, err).Required()

		pool.Close()
		gt.Bool(t, finished.Load()).True()

		_, err = pool.Submit(t.Context(), func(ctx context.Context) error { return nil })
		gt.Error(t, err).Is(async.ErrPoolClosed)
	})
}
