package storage

import bolt "go.etcd.io/bbolt"

// BoltCursor is a thin, direction-agnostic wrapper over a bbolt bucket
// cursor, handed to the cursor engine (pkg/engine) so it can implement
// spec §4.8's seek/step semantics itself. It is only valid for the
// lifetime of the Savepoint that produced it.
type BoltCursor struct {
	c *bolt.Cursor
}

func (bc *BoltCursor) First() (k, v []byte, ok bool) { return wrap(bc.c.First()) }
func (bc *BoltCursor) Last() (k, v []byte, ok bool)  { return wrap(bc.c.Last()) }
func (bc *BoltCursor) Next() (k, v []byte, ok bool)  { return wrap(bc.c.Next()) }
func (bc *BoltCursor) Prev() (k, v []byte, ok bool)  { return wrap(bc.c.Prev()) }
func (bc *BoltCursor) Seek(key []byte) (k, v []byte, ok bool) {
	return wrap(bc.c.Seek(key))
}

func wrap(k, v []byte) ([]byte, []byte, bool) {
	if k == nil {
		return nil, nil, false
	}
	return cloneBytes(k), cloneBytes(v), true
}

// RecordCursor opens a raw cursor over a store's records bucket.
func (s *Savepoint) RecordCursor(storeID uint64) *BoltCursor {
	return &BoltCursor{c: s.tx.Bucket(recordsBucketName(storeID)).Cursor()}
}

// IndexEntryCursor opens a raw cursor over an index's entries bucket.
// Keys are CompositeKey(indexKey, primaryKey); values are the primary
// key bytes again.
func (s *Savepoint) IndexEntryCursor(indexID uint64) *BoltCursor {
	return &BoltCursor{c: s.tx.Bucket(indexBucketName(indexID)).Cursor()}
}

// CompositeKey concatenates an encoded index key and an encoded primary
// key into the byte string stored in an index bucket.
func CompositeKey(indexKey, primaryKey []byte) []byte {
	out := make([]byte, 0, len(indexKey)+len(primaryKey))
	out = append(out, indexKey...)
	out = append(out, primaryKey...)
	return out
}

// seekRange positions c at the first (forward) or last (reverse) entry
// within r and reports whether one was found.
func seekRange(c *bolt.Cursor, r Range, forward bool) (k, v []byte, ok bool) {
	if forward {
		if r.Lower != nil {
			k, v = c.Seek(r.Lower)
		} else {
			k, v = c.First()
		}
	} else {
		if r.Upper != nil {
			k, v = c.Seek(r.Upper)
			if k == nil {
				k, v = c.Last()
			} else if !bytesEqual(k, r.Upper) {
				k, v = c.Prev()
			}
		} else {
			k, v = c.Last()
		}
	}
	for k != nil && !r.Contains(k) {
		if forward {
			k, v = c.Next()
		} else {
			k, v = c.Prev()
		}
	}
	if k == nil {
		return nil, nil, false
	}
	return k, v, true
}

// stepRange advances c one entry in the given direction and reports
// whether the result still falls within r.
func stepRange(c *bolt.Cursor, r Range, forward bool) (k, v []byte, ok bool) {
	if forward {
		k, v = c.Next()
	} else {
		k, v = c.Prev()
	}
	for k != nil && !r.Contains(k) {
		if forward {
			k, v = c.Next()
		} else {
			k, v = c.Prev()
		}
		continue
	}
	if k == nil {
		return nil, nil, false
	}
	return k, v, true
}

func bytesEqual(a, b []byte) bool {
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
