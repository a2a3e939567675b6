package storage

import (
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
)

// AddIndexEntry records that indexKey maps to primaryKey in indexID. For
// a multi-entry index the caller invokes this once per array element;
// non-unique indexes invoke it once per (indexKey, primaryKey) pair that
// results from key-path evaluation.
func (s *Savepoint) AddIndexEntry(indexID uint64, indexKey, primaryKey []byte) error {
	return s.tx.Bucket(indexBucketName(indexID)).Put(CompositeKey(indexKey, primaryKey), primaryKey)
}

// DeleteEntriesForPrimary removes every entry in indexID whose stored
// primary key equals primaryKey, regardless of index key — used when a
// record is deleted or overwritten and its old index entries must be
// retracted before new ones (if any) are added.
func (s *Savepoint) DeleteEntriesForPrimary(indexID uint64, primaryKey []byte) error {
	b := s.tx.Bucket(indexBucketName(indexID))
	var dead [][]byte
	err := b.ForEach(func(k, v []byte) error {
		if bytesEqual(v, primaryKey) {
			dead = append(dead, cloneBytes(k))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range dead {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ClearIndexEntries removes every entry in indexID, used by
// ClearRecords' caller to empty an index alongside its store.
func (s *Savepoint) ClearIndexEntries(indexID uint64) error {
	b := s.tx.Bucket(indexBucketName(indexID))
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// CheckUnique reports whether indexKey already has any entry in indexID
// other than one belonging to excludePrimary (the record currently being
// overwritten, if any). Used to enforce unique-index constraints before
// a put is committed.
func (s *Savepoint) CheckUnique(indexID uint64, indexKey, excludePrimary []byte) (bool, error) {
	c := s.tx.Bucket(indexBucketName(indexID)).Cursor()
	prefix := indexKey
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		rest := k[len(prefix):]
		if len(rest) != len(v) {
			continue
		}
		if excludePrimary != nil && bytesEqual(v, excludePrimary) {
			continue
		}
		return false, nil
	}
	return true, nil
}

// CountIndexRange counts index entries whose index key falls within r.
func (s *Savepoint) CountIndexRange(indexID uint64, r Range) (int, error) {
	n := 0
	c := s.tx.Bucket(indexBucketName(indexID)).Cursor()
	for _, ok := indexSeek(c, r, true); ok; _, ok = indexStep(c, r, true) {
		n++
	}
	return n, nil
}

// GetIndexRange returns every (index key, primary key) pair whose index
// key falls within r, in ascending index-key order, up to limit entries
// (limit<=0 means unbounded).
func (s *Savepoint) GetIndexRange(indexID uint64, r Range, limit int) ([]IndexEntry, error) {
	var out []IndexEntry
	c := s.tx.Bucket(indexBucketName(indexID)).Cursor()
	entry, ok := indexSeek(c, r, true)
	for ok {
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
		entry, ok = indexStep(c, r, true)
	}
	return out, nil
}

// indexKeyOf splits the composite bucket key of an index entry back into
// its index-key component, the part Range bounds are expressed against.
func indexKeyOf(composite []byte) ([]byte, error) {
	first, _, err := idbkey.SplitFirst(composite)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataError, "corrupt index entry key", err)
	}
	return first, nil
}

// indexSeek and indexStep mirror seekRange/stepRange but filter on the
// index-key prefix of a composite (indexKey++primaryKey) bucket key
// rather than the whole key: a composite key can never equal an index
// key bound exactly once a primary key is appended, so Range.Contains
// must be evaluated against the split-off index key, not the raw bucket
// key. Ordering is unaffected: composite byte order already matches
// (indexKey, primaryKey) tuple order, so seeking/stepping the raw cursor
// is safe.
func indexSeek(c *bolt.Cursor, r Range, forward bool) (IndexEntry, bool) {
	var k, v []byte
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
			}
		} else {
			k, v = c.Last()
		}
	}
	return indexFilter(c, k, v, r, forward)
}

func indexStep(c *bolt.Cursor, r Range, forward bool) (IndexEntry, bool) {
	var k, v []byte
	if forward {
		k, v = c.Next()
	} else {
		k, v = c.Prev()
	}
	return indexFilter(c, k, v, r, forward)
}

func indexFilter(c *bolt.Cursor, k, v []byte, r Range, forward bool) (IndexEntry, bool) {
	for k != nil {
		ik, err := indexKeyOf(k)
		if err == nil && r.Contains(ik) {
			return IndexEntry{IndexKey: cloneBytes(ik), PrimaryKey: cloneBytes(v)}, true
		}
		if forward {
			k, v = c.Next()
		} else {
			k, v = c.Prev()
		}
	}
	return IndexEntry{}, false
}
