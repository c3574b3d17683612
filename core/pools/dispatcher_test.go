package pools

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// runDispatcher starts d on n workers and returns a channel closed when Run
// returns
func runDispatcher(d *Dispatcher, n int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		d.Run(n)
		close(done)
	}()
	return done
}

func TestDispatcher_Basic(t *testing.T) {
	d := NewDispatcher()
	stopped := runDispatcher(d, 4)

	var wg sync.WaitGroup
	var counter atomic.Int64

	// Post 100 tasks
	for i := 0; i < 100; i++ {
		wg.Add(1)
		d.Post(func() {
			counter.Add(1)
			wg.Done()
		})
	}

	wg.Wait()
	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}

	d.Close()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	stats := d.Stats()
	if stats.TasksPosted != 100 || stats.TasksCompleted != 100 || stats.TasksPending != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

// TestDispatcher_Workers tests that n workers run tasks concurrently
func TestDispatcher_Workers(t *testing.T) {
	d := NewDispatcher()
	stopped := runDispatcher(d, 4)
	defer func() {
		d.Close()
		<-stopped
	}()

	// Four tasks that only finish once all four are running
	var barrier sync.WaitGroup
	barrier.Add(4)
	var done sync.WaitGroup
	done.Add(4)
	for i := 0; i < 4; i++ {
		d.Post(func() {
			barrier.Done()
			barrier.Wait()
			done.Done()
		})
	}

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected 4 tasks to run in parallel")
	}

	if w := d.Stats().Workers; w != 4 {
		t.Errorf("Expected 4 workers, got %d", w)
	}
}

// TestDispatcher_SingleWorkerOrder tests FIFO order on one worker
func TestDispatcher_SingleWorkerOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		d.Post(func() { order = append(order, i) })
	}
	// Tasks posted by a task run after it
	d.Post(func() {
		d.Post(func() { order = append(order, 11) })
		order = append(order, 10)
	})
	d.Post(func() { d.Close() })

	d.Run(1)

	for i, v := range order {
		if v != i {
			t.Fatalf("Expected FIFO order, got %v", order)
		}
	}
	if len(order) != 12 {
		t.Errorf("Expected 12 tasks, got %d", len(order))
	}
}

// TestDispatcher_PostAfterClose tests that closed dispatchers drop tasks
func TestDispatcher_PostAfterClose(t *testing.T) {
	d := NewDispatcher()
	d.Close()

	if d.Post(func() {}) {
		t.Error("Expected Post to fail after Close")
	}
	if d.Stats().TasksDropped != 1 {
		t.Errorf("Expected 1 dropped task, got %d", d.Stats().TasksDropped)
	}

	// Run returns at once on a closed, empty dispatcher
	d.Run(2)
}

// TestDispatcher_Panic tests that a panicking task does not kill its worker
func TestDispatcher_Panic(t *testing.T) {
	d := NewDispatcher()

	ran := false
	d.Post(func() { panic("boom") })
	d.Post(func() { ran = true })
	d.Post(func() { d.Close() })

	d.Run(1)

	if !ran {
		t.Error("Expected task after panic to run")
	}
	if d.Stats().TasksPanicked != 1 {
		t.Errorf("Expected 1 panicked task, got %d", d.Stats().TasksPanicked)
	}
}

func BenchmarkDispatcher_Post(b *testing.B) {
	d := NewDispatcher()
	stopped := runDispatcher(d, 8)

	var wg sync.WaitGroup
	wg.Add(b.N)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			d.Post(func() {
				// Simulate some work
				_ = 1 + 1
				wg.Done()
			})
		}
	})

	wg.Wait()
	d.Close()
	<-stopped
}
