package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketforge/logger"
)

func TestThreadPoolSubmitRunsTask(t *testing.T) {
	pool := NewThreadPool(2, 4, logger.Logger())
	defer pool.Shutdown()

	var done sync.WaitGroup
	done.Add(1)
	var ran atomic.Bool
	pool.Submit(func() {
		ran.Store(true)
		done.Done()
	})

	waitOrTimeout(t, &done, time.Second)
	if !ran.Load() {
		t.Fatal("expected submitted task to run")
	}
}

func TestThreadPoolRecoversFromPanic(t *testing.T) {
	pool := NewThreadPool(1, 4, logger.Logger())
	defer pool.Shutdown()

	var done sync.WaitGroup
	done.Add(2)
	var secondRan atomic.Bool

	pool.Submit(func() {
		defer done.Done()
		panic("boom")
	})
	pool.Submit(func() {
		defer done.Done()
		secondRan.Store(true)
	})

	waitOrTimeout(t, &done, time.Second)
	if !secondRan.Load() {
		t.Fatal("expected pool to keep running tasks after a panicking one")
	}
}

func TestThreadPoolSubmitAfterShutdownIsNoop(t *testing.T) {
	pool := NewThreadPool(1, 4, logger.Logger())
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after Shutdown should return without blocking")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
