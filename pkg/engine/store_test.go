package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbtypes"
)

func createStore(t *testing.T, h *testHarness, name string, keyPath []string, isArray, autoIncrement bool) {
	t.Helper()
	tr := h.begin(idbtypes.ModeVersionChange)
	_, err := tr.CreateObjectStore(name, keyPath, isArray, autoIncrement)
	require.NoError(t, err)
	h.sched.RunAll()
	require.Equal(t, idbtypes.StateFinished, tr.State())
	require.False(t, tr.Aborted())
}

func TestPutAndGetOutOfLineExplicitKey(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)

	tr := h.begin(idbtypes.ModeReadWrite, "widgets")
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)

	req, err := store.Put(map[string]any{"name": "sprocket"}, "w1")
	require.NoError(t, err)
	result, reqErr := h.await(req)
	require.NoError(t, reqErr)
	assert.Equal(t, "w1", result)

	tr2 := h.begin(idbtypes.ModeReadOnly, "widgets")
	store2, err := tr2.ObjectStore("widgets")
	require.NoError(t, err)
	q, err := KeyQuery("w1")
	require.NoError(t, err)
	getReq, err := store2.Get(q)
	require.NoError(t, err)
	value, getErr := h.await(getReq)
	require.NoError(t, getErr)
	assert.Equal(t, map[string]any{"name": "sprocket"}, value)
}

func TestAddAutoIncrementGeneratesSequentialKeys(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, true)

	tr := h.begin(idbtypes.ModeReadWrite, "widgets")
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)

	req1, err := store.Add(map[string]any{"name": "first"}, nil)
	require.NoError(t, err)
	req2, err := store.Add(map[string]any{"name": "second"}, nil)
	require.NoError(t, err)

	k1, err1 := h.await(req1)
	require.NoError(t, err1)
	h.sched.RunAll()
	k2, err2 := h.await(req2)
	require.NoError(t, err2)

	assert.Equal(t, float64(1), k1)
	assert.Equal(t, float64(2), k2)
}

func TestAddDuplicateKeyIsConstraintError(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)

	tr := h.begin(idbtypes.ModeReadWrite, "widgets")
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)

	req1, err := store.Add(map[string]any{"name": "first"}, "dup")
	require.NoError(t, err)
	_, err1 := h.await(req1)
	require.NoError(t, err1)

	tr2 := h.begin(idbtypes.ModeReadWrite, "widgets")
	store2, err := tr2.ObjectStore("widgets")
	require.NoError(t, err)
	req2, err := store2.Add(map[string]any{"name": "second"}, "dup")
	require.NoError(t, err)

	_, reqErr := h.await(req2)
	require.Error(t, reqErr)
	assert.True(t, idberrors.Is(reqErr, idberrors.ConstraintError))
}

func TestUniqueIndexRejectsDuplicateValue(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)

	tr := h.begin(idbtypes.ModeVersionChange)
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)
	idxReq, err := store.CreateIndex("bySerial", []string{"serial"}, false, true, false)
	require.NoError(t, err)
	_, idxErr := h.await(idxReq)
	require.NoError(t, idxErr)
	require.Equal(t, idbtypes.StateFinished, tr.State())
	require.False(t, tr.Aborted())

	tr2 := h.begin(idbtypes.ModeReadWrite, "widgets")
	store2, err := tr2.ObjectStore("widgets")
	require.NoError(t, err)
	req1, err := store2.Put(map[string]any{"serial": "A1"}, "w1")
	require.NoError(t, err)
	_, err1 := h.await(req1)
	require.NoError(t, err1)

	tr3 := h.begin(idbtypes.ModeReadWrite, "widgets")
	store3, err := tr3.ObjectStore("widgets")
	require.NoError(t, err)
	req2, err := store3.Put(map[string]any{"serial": "A1"}, "w2")
	require.NoError(t, err)
	_, reqErr := h.await(req2)
	require.Error(t, reqErr)
	assert.True(t, idberrors.Is(reqErr, idberrors.ConstraintError))
}

func TestClearRemovesRecordsAndIndexEntries(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "widgets", nil, false, false)

	tr := h.begin(idbtypes.ModeVersionChange)
	store, err := tr.ObjectStore("widgets")
	require.NoError(t, err)
	idxReq, err := store.CreateIndex("bySerial", []string{"serial"}, false, false, false)
	require.NoError(t, err)
	_, idxErr := h.await(idxReq)
	require.NoError(t, idxErr)

	tr2 := h.begin(idbtypes.ModeReadWrite, "widgets")
	store2, err := tr2.ObjectStore("widgets")
	require.NoError(t, err)
	putReq, err := store2.Put(map[string]any{"serial": "A1"}, "w1")
	require.NoError(t, err)
	_, putErr := h.await(putReq)
	require.NoError(t, putErr)

	tr3 := h.begin(idbtypes.ModeReadWrite, "widgets")
	store3, err := tr3.ObjectStore("widgets")
	require.NoError(t, err)
	clearReq, err := store3.Clear()
	require.NoError(t, err)
	_, clearErr := h.await(clearReq)
	require.NoError(t, clearErr)

	tr4 := h.begin(idbtypes.ModeReadOnly, "widgets")
	store4, err := tr4.ObjectStore("widgets")
	require.NoError(t, err)
	countReq, err := store4.Count(All)
	require.NoError(t, err)
	count, countErr := h.await(countReq)
	require.NoError(t, countErr)
	assert.Equal(t, 0, count)
}
