package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idbtypes"
)

func TestMultiEntryIndexCursorOrdering(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "docs", nil, false, true)

	tr := h.begin(idbtypes.ModeVersionChange)
	store, err := tr.ObjectStore("docs")
	require.NoError(t, err)
	idxReq, err := store.CreateIndex("byTag", []string{"tags"}, false, false, true)
	require.NoError(t, err)
	_, idxErr := h.await(idxReq)
	require.NoError(t, idxErr)

	tr2 := h.begin(idbtypes.ModeReadWrite, "docs")
	store2, err := tr2.ObjectStore("docs")
	require.NoError(t, err)
	// Both adds are issued before draining: once drained, the
	// transaction has auto-committed and accepts no further requests.
	put1, err := store2.Add(map[string]any{"tags": []any{"a", "b"}}, nil)
	require.NoError(t, err)
	put2, err := store2.Add(map[string]any{"tags": []any{"b", "c"}}, nil)
	require.NoError(t, err)

	k1, putErr1 := h.await(put1)
	require.NoError(t, putErr1)
	require.Equal(t, float64(1), k1)
	k2, putErr2 := h.await(put2)
	require.NoError(t, putErr2)
	require.Equal(t, float64(2), k2)

	tr3 := h.begin(idbtypes.ModeReadOnly, "docs")
	store3, err := tr3.ObjectStore("docs")
	require.NoError(t, err)
	idx, err := store3.Index("byTag")
	require.NoError(t, err)

	openReq, err := idx.OpenCursor(All, idbtypes.DirectionNext)
	require.NoError(t, err)

	// Continue is only legal while the transaction is active, i.e. from
	// inside a success handler, so each step is driven from there.
	var tags []any
	var primaries []any
	var contErr error
	var visit func(req *event.Request)
	visit = func(req *event.Request) {
		req.OnSuccess = func(*event.Event) error {
			if req.Result == nil {
				return nil
			}
			cursor := req.Result.(*Cursor)
			tags = append(tags, cursor.Key())
			primaries = append(primaries, cursor.PrimaryKey())
			next, err := cursor.Continue(nil)
			if err != nil {
				contErr = err
				return nil
			}
			visit(next)
			return nil
		}
	}
	visit(openReq)
	_, openErr := h.await(openReq)
	require.NoError(t, openErr)
	require.NoError(t, contErr)
	require.False(t, tr3.Aborted())

	require.Equal(t, []any{"a", "b", "b", "c"}, tags)
	require.Equal(t, []any{float64(1), float64(1), float64(2), float64(2)}, primaries)
}

func TestMultiEntryIndexCursorNextUniqueSkipsDuplicateGroup(t *testing.T) {
	h := newHarness(t)
	createStore(t, h, "docs", nil, false, true)

	tr := h.begin(idbtypes.ModeVersionChange)
	store, err := tr.ObjectStore("docs")
	require.NoError(t, err)
	idxReq, err := store.CreateIndex("byTag", []string{"tags"}, false, false, true)
	require.NoError(t, err)
	_, idxErr := h.await(idxReq)
	require.NoError(t, idxErr)

	tr2 := h.begin(idbtypes.ModeReadWrite, "docs")
	store2, err := tr2.ObjectStore("docs")
	require.NoError(t, err)
	put1, err := store2.Add(map[string]any{"tags": []any{"a", "b"}}, nil)
	require.NoError(t, err)
	put2, err := store2.Add(map[string]any{"tags": []any{"b", "c"}}, nil)
	require.NoError(t, err)
	_, putErr1 := h.await(put1)
	require.NoError(t, putErr1)
	_, putErr2 := h.await(put2)
	require.NoError(t, putErr2)

	tr3 := h.begin(idbtypes.ModeReadOnly, "docs")
	store3, err := tr3.ObjectStore("docs")
	require.NoError(t, err)
	idx, err := store3.Index("byTag")
	require.NoError(t, err)

	openReq, err := idx.OpenCursor(All, idbtypes.DirectionNextUnique)
	require.NoError(t, err)

	var tags []any
	var contErr error
	var visit func(req *event.Request)
	visit = func(req *event.Request) {
		req.OnSuccess = func(*event.Event) error {
			if req.Result == nil {
				return nil
			}
			cursor := req.Result.(*Cursor)
			tags = append(tags, cursor.Key())
			next, err := cursor.Continue(nil)
			if err != nil {
				contErr = err
				return nil
			}
			visit(next)
			return nil
		}
	}
	visit(openReq)
	_, openErr := h.await(openReq)
	require.NoError(t, openErr)
	require.NoError(t, contErr)
	require.False(t, tr3.Aborted())

	require.Equal(t, []any{"a", "b", "c"}, tags)
}
