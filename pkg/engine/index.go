package engine

import (
	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/storage"
)

// Index is a lightweight, by-name handle into one secondary index,
// mirroring ObjectStore: no cached catalog state, resolved fresh every
// call against the owning store's current metadata.
type Index struct {
	storeName string
	name      string
	tr        *Transaction
}

func (x *Index) lookupMeta(sp *storage.Savepoint) (idbtypes.IndexMeta, error) {
	storeMeta, ok, err := sp.GetStoreMeta(x.storeName)
	if err != nil {
		return idbtypes.IndexMeta{}, err
	}
	if !ok {
		return idbtypes.IndexMeta{}, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", x.storeName)
	}
	meta, ok, err := sp.GetIndexMeta(storeMeta.ID, x.name)
	if err != nil {
		return idbtypes.IndexMeta{}, err
	}
	if !ok {
		return idbtypes.IndexMeta{}, idberrors.Newf(idberrors.NotFoundError, "no such index %q", x.name)
	}
	return meta, nil
}

// resolveRecord looks up the record a primary key belongs to, joining
// through the owning store (spec.md §3: an index's value "is
// reconstructed by joining through the owning store").
func (x *Index) resolveRecord(sp *storage.Savepoint, storeID uint64, primaryKey []byte) (any, bool, error) {
	data, ok, err := sp.GetRecord(storeID, primaryKey)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := Deserialize(data)
	return v, true, err
}

// Get returns the value of the first record whose index key matches q.
func (x *Index) Get(q Query) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		storeMeta, ok, err := sp.GetStoreMeta(x.storeName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", x.storeName)
		}
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		entries, err := sp.GetIndexRange(meta.ID, r, 1)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, nil
		}
		v, _, err := x.resolveRecord(sp, storeMeta.ID, entries[0].PrimaryKey)
		return v, err
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// GetKey returns the primary key of the first record whose index key
// matches q.
func (x *Index) GetKey(q Query) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		entries, err := sp.GetIndexRange(meta.ID, r, 1)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, nil
		}
		k, err := idbkey.Decode(entries[0].PrimaryKey)
		if err != nil {
			return nil, err
		}
		return keyToValue(k), nil
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// Count returns the number of index entries matching q.
func (x *Index) Count(q Query) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		return sp.CountIndexRange(meta.ID, r)
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// GetAll returns up to count values in (index key, primary key) order.
func (x *Index) GetAll(q Query, count int) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		storeMeta, ok, err := sp.GetStoreMeta(x.storeName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", x.storeName)
		}
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		entries, err := sp.GetIndexRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(entries))
		for i, e := range entries {
			v, _, err := x.resolveRecord(sp, storeMeta.ID, e.PrimaryKey)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// GetAllKeys returns up to count primary keys in (index key, primary
// key) order.
func (x *Index) GetAllKeys(q Query, count int) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		entries, err := sp.GetIndexRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(entries))
		for i, e := range entries {
			k, err := idbkey.Decode(e.PrimaryKey)
			if err != nil {
				return nil, err
			}
			out[i] = keyToValue(k)
		}
		return out, nil
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// GetAllRecords returns up to count {key, primaryKey, value} triples.
func (x *Index) GetAllRecords(q Query, count int) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		storeMeta, ok, err := sp.GetStoreMeta(x.storeName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", x.storeName)
		}
		meta, err := x.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		entries, err := sp.GetIndexRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]RecordTriple, len(entries))
		for i, e := range entries {
			ik, err := idbkey.Decode(e.IndexKey)
			if err != nil {
				return nil, err
			}
			pk, err := idbkey.Decode(e.PrimaryKey)
			if err != nil {
				return nil, err
			}
			v, _, err := x.resolveRecord(sp, storeMeta.ID, e.PrimaryKey)
			if err != nil {
				return nil, err
			}
			out[i] = RecordTriple{Key: keyToValue(ik), PrimaryKey: keyToValue(pk), Value: v}
		}
		return out, nil
	}
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// Rename renames the index in place, legal only inside a version-change
// transaction.
func (x *Index) Rename(newName string) error {
	if x.tr.Mode != idbtypes.ModeVersionChange {
		return idberrors.New(idberrors.InvalidStateError, "renaming an index is only legal inside a version-change transaction")
	}
	if newName == x.name {
		return nil
	}
	oldName := x.name
	_, err := x.tr.RunSync(func(sp *storage.Savepoint) (any, error) {
		storeMeta, ok, err := sp.GetStoreMeta(x.storeName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", x.storeName)
		}
		if _, exists, err := sp.GetIndexMeta(storeMeta.ID, newName); err != nil {
			return nil, err
		} else if exists {
			return nil, idberrors.Newf(idberrors.ConstraintError, "index %q already exists", newName)
		}
		return nil, sp.RenameIndex(storeMeta.ID, oldName, newName)
	})
	if err != nil {
		return err
	}
	x.tr.RecordRevert(func() { x.name = oldName })
	x.name = newName
	return nil
}

// OpenCursor opens a cursor over this index's (index key, primary key)
// entries within q in the given direction, joining each position to its
// record value.
func (x *Index) OpenCursor(q Query, direction idbtypes.CursorDirection) (*event.Request, error) {
	return openIndexCursor(x, q, direction, false)
}

// OpenKeyCursor is like OpenCursor but never loads the record value.
func (x *Index) OpenKeyCursor(q Query, direction idbtypes.CursorDirection) (*event.Request, error) {
	return openIndexCursor(x, q, direction, true)
}
