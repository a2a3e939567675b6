package txn

import (
	"sync"

	"github.com/cuemby/idbstore/pkg/idbtypes"
)

// Scheduler is the per-database queue described by spec.md §4.4: an
// ordered list of not-yet-finished transactions. A pending transaction
// starts once every still-queued transaction created before it either
// has a disjoint scope or is, along with it, read-only. Version-change
// transactions are exclusive: they overlap every scope.
type Scheduler struct {
	mu    sync.Mutex
	queue []*Transaction
}

// NewScheduler returns an empty per-database scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add enrolls t at the back of the creation-order queue and attempts to
// start every transaction now eligible. Each eligible start is itself
// posted as a deferred task, never invoked inline, so scheduling never
// re-enters the caller.
func (s *Scheduler) Add(t *Transaction) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.tryStart()
}

// Finished removes t from the queue (called once its commit or abort
// has fully completed) and re-attempts starts for whatever that
// unblocks.
func (s *Scheduler) Finished(t *Transaction) {
	s.mu.Lock()
	for i, e := range s.queue {
		if e == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.tryStart()
}

func (s *Scheduler) tryStart() {
	s.mu.Lock()
	var toStart []*Transaction
	for i, t := range s.queue {
		t.mu.Lock()
		scheduled := t.startScheduled
		t.mu.Unlock()
		if scheduled {
			continue
		}
		if canStart(s.queue[:i], t) {
			t.mu.Lock()
			t.startScheduled = true
			t.mu.Unlock()
			toStart = append(toStart, t)
		}
	}
	s.mu.Unlock()

	for _, t := range toStart {
		tt := t
		tt.sched.PostTask(func() { tt.start() })
	}
}

// canStart reports whether every transaction in earlier (all queued
// transactions created before t) permits t to start alongside it.
func canStart(earlier []*Transaction, t *Transaction) bool {
	for _, e := range earlier {
		if !scopesOverlap(e, t) {
			continue
		}
		if e.Mode == idbtypes.ModeReadOnly && t.Mode == idbtypes.ModeReadOnly {
			continue
		}
		return false
	}
	return true
}

func scopesOverlap(a, b *Transaction) bool {
	if a.Mode == idbtypes.ModeVersionChange || b.Mode == idbtypes.ModeVersionChange {
		return true
	}
	for _, s1 := range a.Scope {
		for _, s2 := range b.Scope {
			if s1 == s2 {
				return true
			}
		}
	}
	return false
}
