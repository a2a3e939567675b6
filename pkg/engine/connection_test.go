package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/idbtypes"
)

func TestAbortRevertsObjectStoreNamesCache(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)
	require.Equal(t, []string{"widgets"}, h.conn.ObjectStoreNames())

	tr := h.begin(idbtypes.ModeVersionChange)
	_, err := tr.CreateObjectStore("gadgets", nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"gadgets", "widgets"}, h.conn.ObjectStoreNames())

	tr.Abort(errors.New("boom"))
	h.sched.RunAll()

	assert.True(t, tr.Aborted())
	assert.Equal(t, []string{"widgets"}, h.conn.ObjectStoreNames())
}

func TestAbortRollsBackRecordMutations(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)

	tr := h.begin(idbtypes.ModeReadWrite, "widgets")
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)
	putReq, err := store.Put(map[string]any{"name": "sprocket"}, "w1")
	require.NoError(t, err)

	tr.Abort(errors.New("boom"))
	h.sched.RunAll()
	assert.Error(t, putReq.Err)

	tr2 := h.begin(idbtypes.ModeReadOnly, "widgets")
	store2, err := tr2.ObjectStore("widgets")
	require.NoError(t, err)
	countReq, err := store2.Count(All)
	require.NoError(t, err)
	count, countErr := h.await(countReq)
	require.NoError(t, countErr)
	assert.Equal(t, 0, count)
}

func TestOverlappingTransactionsSerializeByScope(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)
	createStore(t, h, "gadgets", nil, false, false)

	trA := h.begin(idbtypes.ModeReadWrite, "widgets")
	storeA, err := trA.ObjectStore("widgets")
	require.NoError(t, err)
	reqA, err := storeA.Put(map[string]any{"name": "a"}, "k1")
	require.NoError(t, err)

	trB := h.begin(idbtypes.ModeReadWrite, "widgets")
	storeB, err := trB.ObjectStore("widgets")
	require.NoError(t, err)
	reqB, err := storeB.Put(map[string]any{"name": "b"}, "k1")
	require.NoError(t, err)

	h.sched.RunAll()
	_, errA := reqA.Result, reqA.Err
	_, errB := reqB.Result, reqB.Err
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, idbtypes.StateFinished, trA.State())
	assert.Equal(t, idbtypes.StateFinished, trB.State())
}
