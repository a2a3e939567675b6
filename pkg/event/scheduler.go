package event

import "sync"

// Task is a unit of deferred work posted to a Scheduler.
type Task func()

// Scheduler abstracts the host's task loop with the two queues the
// design needs: a FIFO macrotask queue (the deferred-task primitive
// transactions and requests post their event dispatch to) and a
// microtask queue drained to exhaustion after each macrotask, used to
// keep a transaction's active flag lit through the synchronous code
// following a handler. It doubles as the synchronous, fully-drainable
// test double the design calls for.
type Scheduler struct {
	mu    sync.Mutex
	tasks []Task
	micro []Task
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// PostTask enqueues t as a macrotask.
func (s *Scheduler) PostTask(t Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// QueueMicrotask enqueues t to run before the next macrotask, after the
// macrotask currently executing (or immediately, via RunMicrotasks, if
// none is).
func (s *Scheduler) QueueMicrotask(t Task) {
	s.mu.Lock()
	s.micro = append(s.micro, t)
	s.mu.Unlock()
}

// RunOne runs the next pending macrotask, draining every microtask it
// transitively queues before returning, and reports whether a task ran.
func (s *Scheduler) RunOne() bool {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.mu.Unlock()

	t()
	s.RunMicrotasks()
	return true
}

// RunMicrotasks drains the microtask queue to exhaustion, including
// microtasks queued by microtasks already running.
func (s *Scheduler) RunMicrotasks() {
	for {
		s.mu.Lock()
		if len(s.micro) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.micro[0]
		s.micro = s.micro[1:]
		s.mu.Unlock()
		t()
	}
}

// RunAll drains every pending macrotask (and its microtasks) until both
// queues are empty.
func (s *Scheduler) RunAll() {
	for s.RunOne() {
	}
}

// Pending reports whether any macrotask or microtask is queued.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks) > 0 || len(s.micro) > 0
}
