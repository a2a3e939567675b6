package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/storage"
)

// testHarness bundles a connection with its own drainable event
// scheduler so each test can run every pending deferred task to
// completion with a single sched.RunAll.
type testHarness struct {
	store *storage.DB
	sched *event.Scheduler
	conn  *Connection
}

func newHarness(t *testing.T, storeNames ...string) *testHarness {
	t.Helper()
	store, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := event.NewScheduler()
	scheduler := NewScheduler()
	conn := newConnection("testdb", 1, storeNames, store, scheduler, sched)
	return &testHarness{store: store, sched: sched, conn: conn}
}

func (h *testHarness) begin(mode idbtypes.TransactionMode, storeNames ...string) *Transaction {
	return h.conn.Begin(storeNames, mode, idbtypes.DurabilityDefault)
}

// await drains every pending task/microtask and returns req's settled
// result and error.
func (h *testHarness) await(req *event.Request) (any, error) {
	h.sched.RunAll()
	return req.Result, req.Err
}
