package txn

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/storage"
)

type fakeRoot struct{ *event.EventTarget }

func newFakeRoot() *fakeRoot { return &fakeRoot{EventTarget: event.NewTarget(nil)} }

func openTestStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReadWriteTransactionCommitsAndFiresComplete(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)

	var completed bool
	tr.AddEventListener(event.TypeComplete, func(evt *event.Event) error {
		completed = true
		return nil
	})

	var result any
	req := tr.Submit(func(sp *storage.Savepoint) (any, error) {
		return 42, nil
	}, "objectstore")
	req.OnSuccess = func(evt *event.Event) error {
		result = req.Result
		return nil
	}

	sched.RunAll()

	assert.Equal(t, idbtypes.StateFinished, tr.State())
	assert.False(t, tr.Aborted())
	assert.True(t, completed)
	assert.Equal(t, 42, result)
}

func TestEmptyTransactionAutoCommits(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadOnly, idbtypes.DurabilityDefault, store, scheduler, sched)

	var completed bool
	tr.AddEventListener(event.TypeComplete, func(evt *event.Event) error {
		completed = true
		return nil
	})

	sched.RunAll()

	assert.True(t, completed)
	assert.Equal(t, idbtypes.StateFinished, tr.State())
}

func TestRequestErrorNotPreventedAbortsTransaction(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)

	var aborted bool
	tr.AddEventListener(event.TypeAbort, func(evt *event.Event) error {
		aborted = true
		return nil
	})

	failure := errors.New("constraint violated")
	tr.Submit(func(sp *storage.Savepoint) (any, error) {
		return nil, failure
	}, "objectstore")

	sched.RunAll()

	assert.True(t, aborted)
	assert.True(t, tr.Aborted())
	assert.ErrorIs(t, tr.Error(), failure)
}

func TestRequestErrorPreventedContinuesTransaction(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)

	var completed bool
	tr.AddEventListener(event.TypeComplete, func(evt *event.Event) error {
		completed = true
		return nil
	})

	req := tr.Submit(func(sp *storage.Savepoint) (any, error) {
		return nil, errors.New("not found")
	}, "objectstore")
	req.OnError = func(evt *event.Event) error {
		evt.PreventDefault()
		return nil
	}

	sched.RunAll()

	assert.True(t, completed)
	assert.False(t, tr.Aborted())
}

func TestExplicitAbortAfterStartFinishesAborted(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)

	tr.Submit(func(sp *storage.Savepoint) (any, error) {
		return nil, nil
	}, "objectstore")

	sched.RunOne() // run scheduler-start task, executing the buffered op
	tr.Abort(errors.New("user abort"))
	sched.RunAll()

	assert.Equal(t, idbtypes.StateFinished, tr.State())
	assert.True(t, tr.Aborted())
}

func TestOverlappingReadWriteTransactionsSerialize(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	t1 := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)
	t2 := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)

	var t1CompleteBeforeT2Request bool
	t1Done := false
	t1.AddEventListener(event.TypeComplete, func(evt *event.Event) error {
		t1Done = true
		return nil
	})

	req2 := t2.Submit(func(sp *storage.Savepoint) (any, error) {
		if !t1Done {
			t1CompleteBeforeT2Request = false
		} else {
			t1CompleteBeforeT2Request = true
		}
		return nil, nil
	}, "objectstore")
	_ = req2

	sched.RunAll()

	assert.True(t, t1CompleteBeforeT2Request, "t2's request must not run before t1 finishes on overlapping scope")
}

func TestRequireActiveRejectsAfterDeactivation(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadWrite, idbtypes.DurabilityDefault, store, scheduler, sched)
	sched.RunMicrotasks()

	err := tr.RequireActive()
	require.Error(t, err)
}

func TestRequireWritableRejectsReadOnly(t *testing.T) {
	store := openTestStore(t)
	sched := event.NewScheduler()
	scheduler := NewScheduler()
	root := newFakeRoot()

	tr := New(root, []string{"widgets"}, idbtypes.ModeReadOnly, idbtypes.DurabilityDefault, store, scheduler, sched)
	assert.Error(t, tr.RequireWritable())
}
