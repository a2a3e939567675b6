package engine

import (
	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/metrics"
	"github.com/cuemby/idbstore/pkg/storage"
)

// Cursor is a live iteration position over an object store or index
// (spec.md §4.8). It holds no savepoint of its own: every Continue,
// ContinuePrimaryKey or Advance call resolves the owning store/index
// fresh and re-seeks a raw storage cursor to the last known key before
// stepping, and Update and Delete resolve the store fresh and act on
// the current primary key — the same by-name-not-by-handle discipline
// ObjectStore and Index follow.
type Cursor struct {
	tr        *Transaction
	store     *ObjectStore // always set
	idx       *Index       // set only for index cursors
	direction idbtypes.CursorDirection
	keyOnly   bool
	base      storage.Range

	valid      bool
	rawKey     []byte // last raw bucket key: primary key for a store cursor, composite for an index cursor
	primaryKey idbkey.Key
	indexKey   *idbkey.Key // nil for a store cursor
	value      any
}

func indexPosition(rawKey []byte) ([]byte, error) {
	first, _, err := idbkey.SplitFirst(rawKey)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "corrupt index entry key", err)
	}
	return first, nil
}

func scanStoreFirst(bc *storage.BoltCursor, r storage.Range, forward bool) (k, v []byte, ok bool) {
	if forward {
		k, v, ok = bc.First()
	} else {
		k, v, ok = bc.Last()
	}
	for ok && !r.Contains(k) {
		if forward {
			k, v, ok = bc.Next()
		} else {
			k, v, ok = bc.Prev()
		}
	}
	return
}

func scanIndexFirst(bc *storage.BoltCursor, r storage.Range, forward bool) (rawKey, val, pos []byte, ok bool, err error) {
	if forward {
		rawKey, val, ok = bc.First()
	} else {
		rawKey, val, ok = bc.Last()
	}
	for ok {
		pos, err = indexPosition(rawKey)
		if err != nil {
			return nil, nil, nil, false, err
		}
		if r.Contains(pos) {
			return rawKey, val, pos, true, nil
		}
		if forward {
			rawKey, val, ok = bc.Next()
		} else {
			rawKey, val, ok = bc.Prev()
		}
	}
	return nil, nil, nil, false, nil
}

// openStoreCursor opens a cursor over an object store's records.
func openStoreCursor(s *ObjectStore, q Query, direction idbtypes.CursorDirection, keyOnly bool) (*event.Request, error) {
	if err := s.tr.RequireActive(); err != nil {
		return nil, err
	}
	base := q.toRange()
	c := &Cursor{tr: s.tr, store: s, direction: direction, keyOnly: keyOnly, base: base}
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := s.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		bc := sp.RecordCursor(meta.ID)
		rawKey, val, ok := scanStoreFirst(bc, base, direction.Forward())
		if !ok {
			return nil, nil
		}
		k, err := idbkey.Decode(rawKey)
		if err != nil {
			return nil, err
		}
		c.valid = true
		c.rawKey = rawKey
		c.primaryKey = k
		if !keyOnly {
			v, err := Deserialize(val)
			if err != nil {
				return nil, err
			}
			c.value = v
		}
		return c, nil
	}
	metrics.CursorsOpenedTotal.WithLabelValues(string(idbtypes.SourceObjectStore)).Inc()
	return s.tr.Submit(op, string(idbtypes.SourceObjectStore)), nil
}

// openIndexCursor opens a cursor over an index's (index key, primary
// key) entries, joining each position to its record value through the
// owning store unless keyOnly.
func openIndexCursor(x *Index, q Query, direction idbtypes.CursorDirection, keyOnly bool) (*event.Request, error) {
	if err := x.tr.RequireActive(); err != nil {
		return nil, err
	}
	base := q.toRange()
	store := &ObjectStore{name: x.storeName, tr: x.tr}
	c := &Cursor{tr: x.tr, store: store, idx: x, direction: direction, keyOnly: keyOnly, base: base}
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
		bc := sp.IndexEntryCursor(meta.ID)
		rawKey, val, _, found, err := scanIndexFirst(bc, base, direction.Forward())
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return c.settle(sp, storeMeta.ID, rawKey, val)
	}
	metrics.CursorsOpenedTotal.WithLabelValues(string(idbtypes.SourceIndex)).Inc()
	return x.tr.Submit(op, string(idbtypes.SourceIndex)), nil
}

// settle decodes a composite index entry and, unless keyOnly, loads its
// joined record value, leaving c positioned there.
func (c *Cursor) settle(sp *storage.Savepoint, storeID uint64, rawKey, primaryKeyBytes []byte) (any, error) {
	first, _, err := idbkey.SplitFirst(rawKey)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "corrupt index entry key", err)
	}
	ik, err := idbkey.Decode(first)
	if err != nil {
		return nil, err
	}
	pk, err := idbkey.Decode(primaryKeyBytes)
	if err != nil {
		return nil, err
	}
	c.valid = true
	c.rawKey = rawKey
	c.indexKey = &ik
	c.primaryKey = pk
	if !c.keyOnly {
		data, ok, err := sp.GetRecord(storeID, primaryKeyBytes)
		if err != nil {
			return nil, err
		}
		if ok {
			v, err := Deserialize(data)
			if err != nil {
				return nil, err
			}
			c.value = v
		}
	}
	return c, nil
}

// Key returns the cursor's current key (the index key for an index
// cursor, the primary key for a store cursor).
func (c *Cursor) Key() any {
	if c.indexKey != nil {
		return keyToValue(*c.indexKey)
	}
	return keyToValue(c.primaryKey)
}

// PrimaryKey returns the cursor's current primary key.
func (c *Cursor) PrimaryKey() any { return keyToValue(c.primaryKey) }

// Value returns the cursor's current joined record value, or nil for a
// key-only cursor.
func (c *Cursor) Value() any { return c.value }

// step re-seeks a raw storage cursor to c.rawKey and advances until it
// finds an entry satisfying c.base, the optional explicit target key
// (and, for continuePrimaryKey, target primary key), and, for the
// *unique directions, a differing index key from the one c is currently
// on. It leaves c positioned there, or marks c exhausted.
func (c *Cursor) step(sp *storage.Savepoint, target *idbkey.Key, targetPrimary *idbkey.Key) (any, error) {
	forward := c.direction.Forward()
	unique := c.direction.Unique()

	if c.idx == nil {
		meta, err := c.store.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		bc := sp.RecordCursor(meta.ID)
		sk, sv, sok := bc.Seek(c.rawKey)
		// If the entry at c.rawKey is gone (deleted through this cursor),
		// Seek already sits on the next entry; going forward, that entry
		// is the first candidate rather than one to step past.
		held := forward && sok && !bytesEq(sk, c.rawKey)
		for {
			var k, v []byte
			var ok bool
			if held {
				k, v, ok, held = sk, sv, true, false
			} else if forward {
				k, v, ok = bc.Next()
			} else {
				k, v, ok = bc.Prev()
			}
			if !ok {
				break
			}
			if !c.base.Contains(k) {
				continue
			}
			if target != nil {
				kk, err := idbkey.Decode(k)
				if err != nil {
					return nil, err
				}
				cmp := idbkey.Compare(kk, *target)
				if forward && cmp < 0 {
					continue
				}
				if !forward && cmp > 0 {
					continue
				}
			}
			kk, err := idbkey.Decode(k)
			if err != nil {
				return nil, err
			}
			c.valid = true
			c.rawKey = k
			c.primaryKey = kk
			if !c.keyOnly {
				val, err := Deserialize(v)
				if err != nil {
					return nil, err
				}
				c.value = val
			}
			return c, nil
		}
		c.valid = false
		return nil, nil
	}

	storeMeta, ok, err := sp.GetStoreMeta(c.idx.storeName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, idberrors.Newf(idberrors.NotFoundError, "no such object store %q", c.idx.storeName)
	}
	meta, err := c.idx.lookupMeta(sp)
	if err != nil {
		return nil, err
	}
	bc := sp.IndexEntryCursor(meta.ID)
	sk, sv, sok := bc.Seek(c.rawKey)
	held := forward && sok && !bytesEq(sk, c.rawKey) // as in the store branch
	groupKey, _, err := idbkey.SplitFirst(c.rawKey)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "corrupt index entry key", err)
	}
	for {
		var k, v []byte
		var ok bool
		if held {
			k, v, ok, held = sk, sv, true, false
		} else if forward {
			k, v, ok = bc.Next()
		} else {
			k, v, ok = bc.Prev()
		}
		if !ok {
			break
		}
		pos, err := indexPosition(k)
		if err != nil {
			return nil, err
		}
		if unique && bytesEq(pos, groupKey) {
			continue
		}
		if !c.base.Contains(pos) {
			continue
		}
		if target != nil {
			ik, err := idbkey.Decode(pos)
			if err != nil {
				return nil, err
			}
			cmp := idbkey.Compare(ik, *target)
			if targetPrimary != nil && cmp == 0 {
				pk, err := idbkey.Decode(v)
				if err != nil {
					return nil, err
				}
				pcmp := idbkey.Compare(pk, *targetPrimary)
				if forward && pcmp < 0 {
					continue
				}
				if !forward && pcmp > 0 {
					continue
				}
			} else if forward && cmp < 0 {
				continue
			} else if !forward && cmp > 0 {
				continue
			}
		}
		return c.settle(sp, storeMeta.ID, k, v)
	}
	c.valid = false
	return nil, nil
}

func bytesEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Continue advances the cursor to the next qualifying position, or, if
// key is non-nil, to the first qualifying position at or past key in
// the direction of travel (DataError if key is not strictly ahead of
// the cursor's current position).
func (c *Cursor) Continue(key any) (*event.Request, error) {
	if err := c.tr.RequireActive(); err != nil {
		return nil, err
	}
	if !c.valid {
		return nil, idberrors.New(idberrors.InvalidStateError, "cursor has no current position")
	}
	var target *idbkey.Key
	if key != nil {
		k, err := idbkey.ValueOf(key)
		if err != nil {
			return nil, idberrors.Wrap(idberrors.DataError, "invalid key", err)
		}
		cur := c.Key()
		curKey, err := idbkey.ValueOf(cur)
		if err != nil {
			return nil, err
		}
		cmp := idbkey.Compare(k, curKey)
		forward := c.direction.Forward()
		if (forward && cmp <= 0) || (!forward && cmp >= 0) {
			return nil, idberrors.New(idberrors.DataError, "continue key is not ahead of the cursor's current position")
		}
		target = &k
	}
	op := func(sp *storage.Savepoint) (any, error) { return c.step(sp, target, nil) }
	return c.tr.Submit(op, string(idbtypes.SourceCursor)), nil
}

// ContinuePrimaryKey advances an index cursor to the first qualifying
// position whose (index key, primary key) pair is at or past (key,
// primaryKey). Only legal on non-unique index cursor directions.
func (c *Cursor) ContinuePrimaryKey(key, primaryKey any) (*event.Request, error) {
	if err := c.tr.RequireActive(); err != nil {
		return nil, err
	}
	if c.idx == nil || c.direction.Unique() {
		return nil, idberrors.New(idberrors.InvalidAccessError, "continuePrimaryKey is only legal on a non-unique index cursor")
	}
	if !c.valid {
		return nil, idberrors.New(idberrors.InvalidStateError, "cursor has no current position")
	}
	k, err := idbkey.ValueOf(key)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "invalid key", err)
	}
	pk, err := idbkey.ValueOf(primaryKey)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "invalid primary key", err)
	}
	op := func(sp *storage.Savepoint) (any, error) { return c.step(sp, &k, &pk) }
	return c.tr.Submit(op, string(idbtypes.SourceCursor)), nil
}

// Advance moves the cursor forward n qualifying positions (n must be
// >=1), discarding the intermediate ones.
func (c *Cursor) Advance(n int) (*event.Request, error) {
	if err := c.tr.RequireActive(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, idberrors.New(idberrors.TypeError, "advance count must be at least 1")
	}
	if !c.valid {
		return nil, idberrors.New(idberrors.InvalidStateError, "cursor has no current position")
	}
	op := func(sp *storage.Savepoint) (any, error) {
		var result any
		for i := 0; i < n; i++ {
			r, err := c.step(sp, nil, nil)
			if err != nil {
				return nil, err
			}
			result = r
			if !c.valid {
				break
			}
		}
		return result, nil
	}
	return c.tr.Submit(op, string(idbtypes.SourceCursor)), nil
}

// Update overwrites the value of the record the cursor is currently on.
// Forbidden on a key-only cursor or within a read-only transaction.
func (c *Cursor) Update(value any) (*event.Request, error) {
	if err := c.tr.RequireActive(); err != nil {
		return nil, err
	}
	if err := c.tr.RequireWritable(); err != nil {
		return nil, err
	}
	if c.keyOnly {
		return nil, idberrors.New(idberrors.InvalidStateError, "cannot update through a key-only cursor")
	}
	if !c.valid {
		return nil, idberrors.New(idberrors.InvalidStateError, "cursor has no current value")
	}
	clone, err := Clone(value)
	if err != nil {
		return nil, err
	}
	primaryKey := c.primaryKey
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := c.store.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		if err := verifyUpdateKey(meta, clone, primaryKey); err != nil {
			return nil, err
		}
		encKey := idbkey.Encode(primaryKey)
		indexes, err := sp.ListIndexes(meta.ID)
		if err != nil {
			return nil, err
		}
		for _, idx := range indexes {
			if err := sp.DeleteEntriesForPrimary(idx.ID, encKey); err != nil {
				return nil, err
			}
		}
		for _, idx := range indexes {
			keys, err := extractIndexKeys(idx, clone)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				enc := idbkey.Encode(k)
				if idx.Unique {
					unique, err := sp.CheckUnique(idx.ID, enc, encKey)
					if err != nil {
						return nil, err
					}
					if !unique {
						return nil, idberrors.New(idberrors.ConstraintError, "unique index constraint violated")
					}
				}
				if err := sp.AddIndexEntry(idx.ID, enc, encKey); err != nil {
					return nil, err
				}
			}
		}
		data, err := Serialize(clone)
		if err != nil {
			return nil, err
		}
		if err := sp.PutRecord(meta.ID, encKey, data); err != nil {
			return nil, err
		}
		c.value = clone
		return keyToValue(primaryKey), nil
	}
	return c.tr.Submit(op, string(idbtypes.SourceCursor)), nil
}

// Delete removes the record the cursor is currently on. Forbidden on a
// key-only cursor or within a read-only transaction.
func (c *Cursor) Delete() (*event.Request, error) {
	if err := c.tr.RequireActive(); err != nil {
		return nil, err
	}
	if err := c.tr.RequireWritable(); err != nil {
		return nil, err
	}
	if c.keyOnly {
		return nil, idberrors.New(idberrors.InvalidStateError, "cannot delete through a key-only cursor")
	}
	if !c.valid {
		return nil, idberrors.New(idberrors.InvalidStateError, "cursor has no current value")
	}
	primaryKey := c.primaryKey
	op := func(sp *storage.Savepoint) (any, error) {
		meta, err := c.store.lookupMeta(sp)
		if err != nil {
			return nil, err
		}
		encKey := idbkey.Encode(primaryKey)
		indexes, err := sp.ListIndexes(meta.ID)
		if err != nil {
			return nil, err
		}
		for _, idx := range indexes {
			if err := sp.DeleteEntriesForPrimary(idx.ID, encKey); err != nil {
				return nil, err
			}
		}
		return nil, sp.DeleteRecord(meta.ID, encKey)
	}
	return c.tr.Submit(op, string(idbtypes.SourceCursor)), nil
}
