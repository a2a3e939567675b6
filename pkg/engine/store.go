package engine

import (
	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/storage"
)

// ObjectStore is a lightweight, by-name handle into one object store
// within a transaction (spec.md §4.7). It holds no catalog state of its
// own: every operation resolves idbtypes.StoreMeta fresh from the
// savepoint, so a store renamed or deleted earlier in the same
// transaction is reflected immediately and handles never go stale.
type ObjectStore struct {
	name string
	tr   *Transaction
}

// RecordTriple is one {key, primaryKey, value} result of getAllRecords
// (SPEC_FULL.md §4.7's addition): for an object store primary key and
// key coincide; for an index they differ.
type RecordTriple struct {
	Key        any
	PrimaryKey any
	Value      any
}

func (s *ObjectStore) lookupMeta(sp *storage.Savepoint) (idbtypes.StoreMeta, error) {
	meta, ok, err := sp.GetStoreMeta(s.name)
	if err != nil {
		return idbtypes.StoreMeta{}, err
	}
	if !ok {
		return idbtypes.StoreMeta{}, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", s.name)
	}
	return meta, nil
}

// Add inserts value, failing with ConstraintError if its primary key
// already exists.
func (s *ObjectStore) Add(value any, explicitKey any) (*event.Request, error) {
	return s.put(value, explicitKey, false)
}

// Put inserts or overwrites value.
func (s *ObjectStore) Put(value any, explicitKey any) (*event.Request, error) {
	return s.put(value, explicitKey, true)
}

func (s *ObjectStore) put(value any, explicitKey any, overwrite bool) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	if err := s.tr.RequireWritable(); err != nil {
		return nil, err
	}
	clone, err := Clone(value)
	if err != nil {
		return nil, err
	}
	var explicit *idbkey.Key
	if explicitKey != nil {
		k, err := idbkey.ValueOf(explicitKey)
		if err != nil {
			return nil, idberrors.Wrap(idberrors.DataError, "invalid key", err)
		}
		explicit = &k
	}

	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		key, effective, err := resolveKey(meta, clone, explicit)
		if err != nil {
			return nil, err
		}
		encKey := idbkey.Encode(key)

		_, found, err := sp.GetRecord(meta.ID, encKey)
		if err != nil {
			return nil, err
		}
		if found && !overwrite {
			return nil, idberrors.New(idberrors.ConstraintError, "a record with this primary key already exists")
		}

		indexes, err := sp.ListIndexes(meta.ID)
		if err != nil {
			return nil, err
		}
		entries := make([][]idbkey.Key, len(indexes))
		for i, idx := range indexes {
			keys, err := extractIndexKeys(idx, effective)
			if err != nil {
				return nil, err
			}
			entries[i] = keys
		}
		for i, idx := range indexes {
			if !idx.Unique {
				continue
			}
			for _, k := range entries[i] {
				unique, err := sp.CheckUnique(idx.ID, idbkey.Encode(k), encKey)
				if err != nil {
					return nil, err
				}
				if !unique {
					return nil, idberrors.New(idberrors.ConstraintError, "unique index constraint violated")
				}
			}
		}

		if found {
			for _, idx := range indexes {
				if err := sp.DeleteEntriesForPrimary(idx.ID, encKey); err != nil {
					return nil, err
				}
			}
		}

		data, err := Serialize(effective)
		if err != nil {
			return nil, err
		}
		if err := sp.PutRecord(meta.ID, encKey, data); err != nil {
			return nil, err
		}
		for i, idx := range indexes {
			for _, k := range entries[i] {
				if err := sp.AddIndexEntry(idx.ID, idbkey.Encode(k), encKey); err != nil {
					return nil, err
				}
			}
		}

		if err := advanceKeyGeneratorIfNeeded(func(v float64) error { return sp.UpdateCurrentKey(meta.ID, v) }, meta, key); err != nil {
			return nil, err
		}
		return keyToValue(key), nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// Get returns the value at q, or a nil result if nothing matches.
func (s *ObjectStore) Get(q Query) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, 1)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}
		return Deserialize(recs[0].Value)
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// GetKey returns the first primary key matching q.
func (s *ObjectStore) GetKey(q Query) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, 1)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}
		k, err := idbkey.Decode(recs[0].Key)
		if err != nil {
			return nil, err
		}
		return keyToValue(k), nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// Delete removes every record matching q.
func (s *ObjectStore) Delete(q Query) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	if err := s.tr.RequireWritable(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		indexes, err := sp.ListIndexes(meta.ID)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, 0)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			for _, idx := range indexes {
				if err := sp.DeleteEntriesForPrimary(idx.ID, rec.Key); err != nil {
					return nil, err
				}
			}
		}
		_, err = sp.DeleteInRange(meta.ID, r)
		return nil, err
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// Clear removes every record and index entry in the store.
func (s *ObjectStore) Clear() (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	if err := s.tr.RequireWritable(); err != nil {
		return nil, err
	}
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		indexes, err := sp.ListIndexes(meta.ID)
		if err != nil {
			return nil, err
		}
		for _, idx := range indexes {
			if err := sp.ClearIndexEntries(idx.ID); err != nil {
				return nil, err
			}
		}
		return nil, sp.ClearRecords(meta.ID)
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// Count returns the number of records matching q (q may be All).
func (s *ObjectStore) Count(q Query) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		return sp.CountInRange(meta.ID, r)
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// GetAll returns up to count values matching q in ascending key order
// (count<=0 means unbounded).
func (s *ObjectStore) GetAll(q Query, count int) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(recs))
		for i, rec := range recs {
			v, err := Deserialize(rec.Value)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// GetAllKeys returns up to count primary keys matching q in ascending
// order.
func (s *ObjectStore) GetAllKeys(q Query, count int) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(recs))
		for i, rec := range recs {
			k, err := idbkey.Decode(rec.Key)
			if err != nil {
				return nil, err
			}
			out[i] = keyToValue(k)
		}
		return out, nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// GetAllRecords returns up to count {key, primaryKey, value} triples
// matching q (SPEC_FULL.md §4.7's addition).
func (s *ObjectStore) GetAllRecords(q Query, count int) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	r := q.toRange()
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		recs, err := sp.GetInRange(meta.ID, r, count)
		if err != nil {
			return nil, err
		}
		out := make([]RecordTriple, len(recs))
		for i, rec := range recs {
			k, err := idbkey.Decode(rec.Key)
			if err != nil {
				return nil, err
			}
			v, err := Deserialize(rec.Value)
			if err != nil {
				return nil, err
			}
			kv := keyToValue(k)
			out[i] = RecordTriple{Key: kv, PrimaryKey: kv, Value: v}
		}
		return out, nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// CreateIndex declares a new secondary index on the store, legal only
// inside a version-change transaction. It back-populates from every
// existing record within the same savepoint (spec.md §4.7); a unique
// violation during back-population fails the request (and, unprevented,
// aborts the transaction — the savepoint rollback then removes the
// freshly created index; CreateIndex records no metadata-revert entry).
func (s *ObjectStore) CreateIndex(name string, keyPath []string, isArray, unique, multiEntry bool) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	if s.tr.Mode != idbtypes.ModeVersionChange {
		return nil, idberrors.New(idberrors.InvalidStateError, "createIndex is only legal inside a version-change transaction")
	}
	if multiEntry && isArray {
		return nil, idberrors.New(idberrors.InvalidAccessError, "a multiEntry index cannot use a sequence key path")
	}
	if _, err := buildKeyPath(keyPath, isArray); err != nil {
		return nil, err
	}

	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		if _, exists, err := sp.GetIndexMeta(meta.ID, name); err != nil {
			return nil, err
		} else if exists {
			return nil, idberrors.Newf(idberrors.ConstraintError, "index %q already exists", name)
		}

		im := &idbtypes.IndexMeta{StoreID: meta.ID, Name: name, KeyPath: keyPath, IsArray: isArray, Unique: unique, MultiEntry: multiEntry}
		if err := sp.CreateIndex(im); err != nil {
			return nil, err
		}

		recs, err := sp.GetInRange(meta.ID, storage.Range{}, 0)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			val, err := Deserialize(rec.Value)
			if err != nil {
				return nil, err
			}
			keys, err := extractIndexKeys(*im, val)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				enc := idbkey.Encode(k)
				if im.Unique {
					ok, err := sp.CheckUnique(im.ID, enc, rec.Key)
					if err != nil {
						return nil, err
					}
					if !ok {
						return nil, idberrors.New(idberrors.ConstraintError, "unique constraint violated during index back-population")
					}
				}
				if err := sp.AddIndexEntry(im.ID, enc, rec.Key); err != nil {
					return nil, err
				}
			}
		}
		return im.ID, nil
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// DeleteIndex removes a secondary index, legal only inside a
// version-change transaction.
func (s *ObjectStore) DeleteIndex(name string) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	if s.tr.Mode != idbtypes.ModeVersionChange {
		return nil, idberrors.New(idberrors.InvalidStateError, "deleteIndex is only legal inside a version-change transaction")
	}
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		return nil, sp.DeleteIndex(meta.ID, name)
	}
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// OpenCursor opens a cursor over this store's records within q in the
// given direction.
func (s *ObjectStore) OpenCursor(q Query, direction idbtypes.CursorDirection) (*event.Request, error) {
	return openStoreCursor(s, q, direction, false)
}

// OpenKeyCursor is like OpenCursor but never loads the record value.
func (s *ObjectStore) OpenKeyCursor(q Query, direction idbtypes.CursorDirection) (*event.Request, error) {
	return openStoreCursor(s, q, direction, true)
}

// Index returns a handle to a named secondary index on this store. Like
// ObjectStore, it carries no catalog state and is resolved fresh by
// every operation.
func (s *ObjectStore) Index(name string) (*Index, error) {
	if s.tr.State() == idbtypes.StateFinished {
		return nil, idberrors.New(idberrors.InvalidStateError, "transaction has finished")
	}
	return &Index{storeName: s.name, name: name, tr: s.tr}, nil
}

// Rename renames the store in place, legal only inside a version-change
// transaction on a live handle. Renaming to the current name is a no-op;
// renaming to a name already in use is a ConstraintError.
func (s *ObjectStore) Rename(newName string) error {
	if s.tr.Mode != idbtypes.ModeVersionChange {
		return idberrors.New(idberrors.InvalidStateError, "renaming an object store is only legal inside a version-change transaction")
	}
	if newName == s.name {
		return nil
	}
	oldName := s.name
	_, err := s.tr.RunSync(func(sp *storage.Savepoint) (any, error) {
		if _, exists, err := sp.GetStoreMeta(newName); err != nil {
			return nil, err
		} else if exists {
			return nil, idberrors.Newf(idberrors.ConstraintError, "object store %q already exists", newName)
		}
		return nil, sp.RenameStore(oldName, newName)
	})
	if err != nil {
		return err
	}
	s.tr.conn.removeStoreName(oldName)
	s.tr.conn.addStoreName(newName)
	s.tr.RecordRevert(func() {
		s.tr.conn.removeStoreName(newName)
		s.tr.conn.addStoreName(oldName)
	})
	s.name = newName
	return nil
}
