package pools

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work
type Task func()

// Dispatcher is a single shared FIFO of tasks executed by a set of worker
// goroutines. Tasks posted by a task run after it returns, on whichever
// worker picks them up next.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	head   int
	closed bool

	workers sync.WaitGroup
	active  atomic.Int32

	// Statistics
	stats struct {
		tasksPosted    atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksPanicked  atomic.Uint64
		tasksDropped   atomic.Uint64
	}
}

// NewDispatcher creates an idle dispatcher; call Run to execute tasks
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		queue: make([]Task, 0, 256),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Post queues task. It never blocks. It returns false once the dispatcher
// is closed, in which case the task is dropped.
func (d *Dispatcher) Post(task Task) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.stats.tasksDropped.Add(1)
		return false
	}
	d.stats.tasksPosted.Add(1)
	d.queue = append(d.queue, task)
	d.mu.Unlock()

	d.cond.Signal()
	return true
}

// Run executes tasks on n workers: n-1 new goroutines plus the caller.
// n < 1 means runtime.NumCPU(). Run returns after Close, once every worker
// has drained the queue and returned.
func (d *Dispatcher) Run(n int) {
	if n < 1 {
		n = runtime.NumCPU()
	}

	d.workers.Add(n)
	for i := 1; i < n; i++ {
		go d.worker()
	}

	d.worker()
	d.workers.Wait()
}

// worker is the main loop for a worker goroutine
func (d *Dispatcher) worker() {
	defer d.workers.Done()

	d.active.Add(1)
	defer d.active.Add(-1)

	for {
		task, ok := d.next()
		if !ok {
			return
		}
		d.execute(task)
	}
}

// next blocks until a task is ready or the dispatcher is closed and drained
func (d *Dispatcher) next() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.head == len(d.queue) && !d.closed {
		d.cond.Wait()
	}
	if d.head == len(d.queue) {
		return nil, false
	}

	task := d.queue[d.head]
	d.queue[d.head] = nil
	d.head++

	// Compact once the consumed prefix dominates
	if d.head == len(d.queue) {
		d.queue = d.queue[:0]
		d.head = 0
	} else if d.head > 1024 && d.head*2 > len(d.queue) {
		n := copy(d.queue, d.queue[d.head:])
		d.queue = d.queue[:n]
		d.head = 0
	}

	return task, true
}

func (d *Dispatcher) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.tasksPanicked.Add(1)
		}
		d.stats.tasksCompleted.Add(1)
	}()
	task()
}

// Close stops accepting tasks. Queued tasks still run; Run returns once the
// queue is empty.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return // Already closed
	}
	d.closed = true
	d.mu.Unlock()

	d.cond.Broadcast()
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() DispatcherStats {
	posted := d.stats.tasksPosted.Load()
	completed := d.stats.tasksCompleted.Load()
	return DispatcherStats{
		Workers:        int(d.active.Load()),
		TasksPosted:    posted,
		TasksCompleted: completed,
		TasksPending:   posted - completed,
		TasksPanicked:  d.stats.tasksPanicked.Load(),
		TasksDropped:   d.stats.tasksDropped.Load(),
	}
}

// DispatcherStats contains dispatcher statistics
type DispatcherStats struct {
	Workers        int
	TasksPosted    uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksPanicked  uint64
	TasksDropped   uint64
}
