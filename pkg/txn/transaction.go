package txn

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/log"
	"github.com/cuemby/idbstore/pkg/storage"
)

// Op is the synchronous storage work a request submits; it runs against
// the transaction's lazily-begun savepoint.
type Op func(sp *storage.Savepoint) (any, error)

// Transaction is the active/inactive/committing/finished state machine
// of spec.md §4.5. It is an event.Target whose parent is the database
// handle that created it.
type Transaction struct {
	*event.EventTarget

	ID         string
	Scope      []string
	Mode       idbtypes.TransactionMode
	Durability idbtypes.Durability

	store     *storage.DB
	scheduler *Scheduler
	sched     *event.Scheduler

	mu                  sync.Mutex
	state               idbtypes.TransactionState
	aborted             bool
	err                 error
	savepoint           *storage.Savepoint
	started             bool
	startScheduled      bool
	pendingOps          []pendingSubmission
	pendingRequestCount int
	journal             []func()
}

// pendingSubmission pairs a buffered operation with the request it
// belongs to, so an abort before the scheduler has started the
// transaction can fail every such request with its cause instead of
// leaving start() to find and run them against a transaction that has
// already finished.
type pendingSubmission struct {
	op  Op
	req *event.Request
}

// New constructs a transaction scoped to storeNames, enrolls it with
// scheduler, and schedules its initial deactivation microtask. parent is
// the database handle it bubbles events into.
func New(parent event.Target, storeNames []string, mode idbtypes.TransactionMode, durability idbtypes.Durability, store *storage.DB, scheduler *Scheduler, sched *event.Scheduler) *Transaction {
	scope := append([]string(nil), storeNames...)
	sort.Strings(scope)

	t := &Transaction{
		EventTarget: event.NewTarget(parent),
		ID:          uuid.NewString(),
		Scope:       scope,
		Mode:        mode,
		Durability:  durability,
		store:       store,
		scheduler:   scheduler,
		sched:       sched,
		state:       idbtypes.StateActive,
	}
	sched.QueueMicrotask(t.deactivate)
	scheduler.Add(t)
	return t
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() idbtypes.TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Error returns the error the transaction aborted with, if any.
func (t *Transaction) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Aborted reports whether the transaction finished via abort rather
// than commit.
func (t *Transaction) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// RequireActive returns TransactionInactiveError unless the transaction
// is currently active — the guard every data operation performs before
// calling Submit.
func (t *Transaction) RequireActive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != idbtypes.StateActive {
		return idberrors.New(idberrors.TransactionInactiveError, "transaction is not active")
	}
	return nil
}

// RequireWritable returns ReadOnlyError if the transaction was opened
// readonly.
func (t *Transaction) RequireWritable() error {
	if t.Mode == idbtypes.ModeReadOnly {
		return idberrors.New(idberrors.ReadOnlyError, "transaction is read-only")
	}
	return nil
}

// RecordRevert appends fn to the metadata-revert journal (spec.md §4.6).
// Only meaningful — and only retained — for version-change transactions;
// a no-op otherwise. Entries replay in reverse order on abort, after the
// savepoint rollback has already undone on-disk state, to put any
// in-memory handles engine code is holding back the way they were.
func (t *Transaction) RecordRevert(fn func()) {
	if t.Mode != idbtypes.ModeVersionChange {
		return
	}
	t.mu.Lock()
	t.journal = append(t.journal, fn)
	t.mu.Unlock()
}

// Submit queues an operation+event closure pair for a new request, per
// spec.md §4.5's "every request submits a pair" discipline: if the
// scheduler hasn't started this transaction yet, both closures are
// buffered; otherwise the operation runs now and the event closure is
// posted as a deferred task.
func (t *Transaction) Submit(op Op, source string) *event.Request {
	req := event.NewRequest(t)
	req.Source = source

	t.mu.Lock()
	t.pendingRequestCount++
	started := t.started
	if !started {
		t.pendingOps = append(t.pendingOps, pendingSubmission{op: op, req: req})
	}
	t.mu.Unlock()

	if started {
		t.runOp(op, req)
	}
	return req
}

// RunSync executes op immediately against the transaction's savepoint,
// bypassing the request/event pipeline entirely. This is for spec.md's
// synchronous structural mutations (createObjectStore, createIndex,
// renames): in the real model these run directly against a connection
// already mid-transaction during the upgradeneeded handler, never as a
// deferred request.
func (t *Transaction) RunSync(op Op) (any, error) {
	sp, err := t.ensureSavepoint()
	if err != nil {
		return nil, err
	}
	return op(sp)
}

func (t *Transaction) runOp(op Op, req *event.Request) {
	sp, err := t.ensureSavepoint()
	var result any
	if err == nil {
		result, err = op(sp)
	}
	if err != nil {
		req.Fail(err)
	} else {
		req.Succeed(result)
	}
	t.sched.PostTask(func() { t.dispatchRequestEvent(req) })
}

func (t *Transaction) ensureSavepoint() (*storage.Savepoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == idbtypes.StateFinished {
		return nil, idberrors.New(idberrors.TransactionInactiveError, "transaction has finished")
	}
	if t.savepoint != nil {
		return t.savepoint, nil
	}
	sp, err := t.store.Begin(t.Mode != idbtypes.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	t.savepoint = sp
	return sp, nil
}

func (t *Transaction) start() {
	t.mu.Lock()
	if t.state == idbtypes.StateFinished {
		// Aborted before the scheduler got around to starting it:
		// abort() already cleared pendingOps and failed every request
		// buffered in it, so there is nothing left to run.
		t.mu.Unlock()
		return
	}
	t.started = true
	ops := t.pendingOps
	t.pendingOps = nil
	t.mu.Unlock()

	for _, sub := range ops {
		t.runOp(sub.op, sub.req)
	}
	t.checkAutoCommit()
}

// activate lifts the transaction back to active for the duration of a
// handler, unless it has already committed or finished.
func (t *Transaction) activate() {
	t.mu.Lock()
	if t.state != idbtypes.StateFinished && t.state != idbtypes.StateCommitting {
		t.state = idbtypes.StateActive
	}
	t.mu.Unlock()
}

func (t *Transaction) deactivate() {
	t.mu.Lock()
	if t.state == idbtypes.StateActive {
		t.state = idbtypes.StateInactive
	}
	t.mu.Unlock()
	t.checkAutoCommit()
}

// checkAutoCommit implements spec.md §4.5's auto-commit rule: once
// inactive with no pending requests, commit. An empty transaction the
// scheduler hasn't started yet just stays inactive-and-idle here;
// start() calls this again once it has run any buffered operations, by
// which point pendingRequestCount reflects whatever they submitted.
func (t *Transaction) checkAutoCommit() {
	t.mu.Lock()
	ready := t.started && t.state == idbtypes.StateInactive && t.pendingRequestCount == 0
	if !ready {
		t.mu.Unlock()
		return
	}
	t.state = idbtypes.StateCommitting
	t.mu.Unlock()
	t.commit()
}

// dispatchRequestEvent implements spec.md §4.5's "dispatching a request
// event" discipline.
func (t *Transaction) dispatchRequestEvent(req *event.Request) {
	t.activate()

	var threw bool
	var errEvt *event.Event
	if req.Err != nil {
		errEvt, threw = req.DispatchError(t.reportListenerError)
	} else {
		threw = req.DispatchSuccess(t.reportListenerError)
	}

	if threw {
		cause := req.Err
		if cause == nil {
			cause = idberrors.New(idberrors.AbortError, "event listener exception")
		}
		t.abort(cause)
		return
	}
	if req.Err != nil && !errEvt.DefaultPrevented() {
		t.abort(req.Err)
		return
	}

	// A *double* microtask: the first lets any microtask a handler
	// itself queued run first, the second is where the transaction
	// actually returns to inactive.
	t.sched.QueueMicrotask(func() {
		t.sched.QueueMicrotask(func() {
			t.mu.Lock()
			t.pendingRequestCount--
			t.mu.Unlock()
			t.deactivate()
		})
	})
}

func (t *Transaction) reportListenerError(err error) {
	log.Errorf("event listener exception", err)
}

// Abort cancels the transaction: pending operations never run, every
// still-pending request is failed with cause, the savepoint rolls back,
// the metadata-revert journal replays for version-change transactions,
// and an abort event bubbles through the database.
func (t *Transaction) Abort(cause error) { t.abort(cause) }

func (t *Transaction) abort(cause error) {
	t.mu.Lock()
	if t.state == idbtypes.StateFinished {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	t.err = cause
	t.state = idbtypes.StateFinished
	sp := t.savepoint
	journal := t.journal
	t.journal = nil
	pending := t.pendingOps
	t.pendingOps = nil
	t.mu.Unlock()

	// Requests buffered because the scheduler hadn't started this
	// transaction yet never ran their operation: fail them directly
	// rather than let start() run them against a savepoint opened after
	// the transaction had already finished.
	for _, sub := range pending {
		sub.req.Fail(cause)
		t.sched.PostTask(func() { t.dispatchRequestEvent(sub.req) })
	}

	if sp != nil {
		sp.Rollback()
	}
	if t.Mode == idbtypes.ModeVersionChange {
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
	}

	evt := event.NewEvent(event.TypeAbort, true, false)
	event.Dispatch(t, evt, nil, t.reportListenerError)
	t.scheduler.Finished(t)
}

func (t *Transaction) commit() {
	t.mu.Lock()
	sp := t.savepoint
	t.mu.Unlock()

	if sp != nil {
		if err := sp.Release(); err != nil {
			t.abort(err)
			return
		}
	}

	t.mu.Lock()
	t.state = idbtypes.StateFinished
	t.mu.Unlock()

	evt := event.NewEvent(event.TypeComplete, false, false)
	event.Dispatch(t, evt, nil, t.reportListenerError)
	t.scheduler.Finished(t)
}
