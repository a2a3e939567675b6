package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var (
	bucketStores    = []byte("stores")
	bucketStoreIDs  = []byte("store_ids")
	bucketIndexes   = []byte("indexes")
	bucketIndexIDs  = []byte("index_ids")
)

// DB is the per-database storage driver: one bbolt file holding the
// store/index catalog and every store's records and index entries.
type DB struct {
	bolt *bolt.DB
}

// OpenDB opens (creating if absent) the database file at path.
func OpenDB(path string) (*DB, error) {
	b, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	err = b.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketStores, bucketStoreIDs, bucketIndexes, bucketIndexIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("init database file: %w", err)
	}
	return &DB{bolt: b}, nil
}

// Close closes the database file. All savepoints must already be
// released or rolled back.
func (d *DB) Close() error { return d.bolt.Close() }

// Begin opens a savepoint: a held-open bbolt transaction, writable for
// readwrite/versionchange IndexedDB transactions and read-only for
// readonly ones. This is spec §6's begin_savepoint.
func (d *DB) Begin(writable bool) (*Savepoint, error) {
	tx, err := d.bolt.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("begin savepoint: %w", err)
	}
	return &Savepoint{tx: tx, writable: writable}, nil
}

func storeIDKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func recordsBucketName(storeID uint64) []byte {
	return []byte(fmt.Sprintf("records:%d", storeID))
}

func indexBucketName(indexID uint64) []byte {
	return []byte(fmt.Sprintf("index:%d", indexID))
}

func indexCatalogKey(storeID uint64, name string) []byte {
	return []byte(fmt.Sprintf("%d/%s", storeID, name))
}

// Savepoint is one held-open bbolt transaction: the unit every
// idbtypes transaction's lifecycle (spec §4.5) operates against.
// Release commits a writable savepoint or closes a read-only one;
// Rollback always discards it.
type Savepoint struct {
	tx       *bolt.Tx
	writable bool
}

// Writable reports whether this savepoint was opened for a
// readwrite/versionchange transaction.
func (s *Savepoint) Writable() bool { return s.writable }

// Release commits the savepoint (readwrite/versionchange) or closes it
// without effect (readonly) — spec §6's release_savepoint.
func (s *Savepoint) Release() error {
	if s.writable {
		return s.tx.Commit()
	}
	return s.tx.Rollback()
}

// Rollback discards every change made under this savepoint — spec §6's
// rollback_savepoint.
func (s *Savepoint) Rollback() error {
	return s.tx.Rollback()
}

// ---- store catalog ----

// ListStores returns every object store's metadata.
func (s *Savepoint) ListStores() ([]idbtypes.StoreMeta, error) {
	var out []idbtypes.StoreMeta
	err := s.tx.Bucket(bucketStores).ForEach(func(_, v []byte) error {
		var m idbtypes.StoreMeta
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// GetStoreMeta looks up a store by name.
func (s *Savepoint) GetStoreMeta(name string) (idbtypes.StoreMeta, bool, error) {
	data := s.tx.Bucket(bucketStores).Get([]byte(name))
	if data == nil {
		return idbtypes.StoreMeta{}, false, nil
	}
	var m idbtypes.StoreMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return idbtypes.StoreMeta{}, false, err
	}
	return m, true, nil
}

// GetStoreMetaByID looks up a store by its stable id.
func (s *Savepoint) GetStoreMetaByID(id uint64) (idbtypes.StoreMeta, bool, error) {
	name := s.tx.Bucket(bucketStoreIDs).Get(storeIDKey(id))
	if name == nil {
		return idbtypes.StoreMeta{}, false, nil
	}
	return s.GetStoreMeta(string(name))
}

// CreateStore assigns meta a fresh id, creates its records bucket, and
// persists the catalog entry.
func (s *Savepoint) CreateStore(meta *idbtypes.StoreMeta) error {
	b := s.tx.Bucket(bucketStores)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	meta.ID = id
	if _, err := s.tx.CreateBucketIfNotExists(recordsBucketName(id)); err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(meta.Name), data); err != nil {
		return err
	}
	return s.tx.Bucket(bucketStoreIDs).Put(storeIDKey(id), []byte(meta.Name))
}

// PutStoreMeta overwrites an existing store's catalog entry (used to
// persist key-generator advances and renames).
func (s *Savepoint) PutStoreMeta(meta idbtypes.StoreMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.tx.Bucket(bucketStores).Put([]byte(meta.Name), data)
}

// DeleteStore removes a store's catalog entry, its records bucket, and
// every index declared on it.
func (s *Savepoint) DeleteStore(name string) error {
	meta, ok, err := s.GetStoreMeta(name)
	if err != nil {
		return err
	}
	if !ok {
		return idberrors.Newf(idberrors.NotFoundError, "no such object store %q", name)
	}
	indexes, err := s.ListIndexes(meta.ID)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := s.deleteIndexEntry(idx); err != nil {
			return err
		}
	}
	if err := s.tx.DeleteBucket(recordsBucketName(meta.ID)); err != nil && err != bolt.ErrBucketNotFound {
		return err
	}
	if err := s.tx.Bucket(bucketStoreIDs).Delete(storeIDKey(meta.ID)); err != nil {
		return err
	}
	return s.tx.Bucket(bucketStores).Delete([]byte(name))
}

// RenameStore renames a store's catalog entry in place.
func (s *Savepoint) RenameStore(oldName, newName string) error {
	meta, ok, err := s.GetStoreMeta(oldName)
	if err != nil {
		return err
	}
	if !ok {
		return idberrors.Newf(idberrors.NotFoundError, "no such object store %q", oldName)
	}
	meta.Name = newName
	if err := s.tx.Bucket(bucketStores).Delete([]byte(oldName)); err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.tx.Bucket(bucketStores).Put([]byte(newName), data); err != nil {
		return err
	}
	return s.tx.Bucket(bucketStoreIDs).Put(storeIDKey(meta.ID), []byte(newName))
}

// UpdateCurrentKey advances a store's key generator value.
func (s *Savepoint) UpdateCurrentKey(storeID uint64, v float64) error {
	meta, ok, err := s.GetStoreMetaByID(storeID)
	if err != nil {
		return err
	}
	if !ok {
		return idberrors.Newf(idberrors.NotFoundError, "no such object store id %d", storeID)
	}
	meta.CurrentKey = v
	return s.PutStoreMeta(meta)
}

// ---- index catalog ----

// ListIndexes returns every index declared on storeID.
func (s *Savepoint) ListIndexes(storeID uint64) ([]idbtypes.IndexMeta, error) {
	prefix := []byte(fmt.Sprintf("%d/", storeID))
	var out []idbtypes.IndexMeta
	c := s.tx.Bucket(bucketIndexes).Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var m idbtypes.IndexMeta
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// GetIndexMeta looks up an index by owning store and name.
func (s *Savepoint) GetIndexMeta(storeID uint64, name string) (idbtypes.IndexMeta, bool, error) {
	data := s.tx.Bucket(bucketIndexes).Get(indexCatalogKey(storeID, name))
	if data == nil {
		return idbtypes.IndexMeta{}, false, nil
	}
	var m idbtypes.IndexMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return idbtypes.IndexMeta{}, false, err
	}
	return m, true, nil
}

// CreateIndex assigns meta a fresh id, creates its entries bucket, and
// persists the catalog entry.
func (s *Savepoint) CreateIndex(meta *idbtypes.IndexMeta) error {
	b := s.tx.Bucket(bucketIndexes)
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	meta.ID = id
	if _, err := s.tx.CreateBucketIfNotExists(indexBucketName(id)); err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := b.Put(indexCatalogKey(meta.StoreID, meta.Name), data); err != nil {
		return err
	}
	return s.tx.Bucket(bucketIndexIDs).Put(storeIDKey(meta.ID), indexCatalogKey(meta.StoreID, meta.Name))
}

func (s *Savepoint) deleteIndexEntry(meta idbtypes.IndexMeta) error {
	if err := s.tx.DeleteBucket(indexBucketName(meta.ID)); err != nil && err != bolt.ErrBucketNotFound {
		return err
	}
	if err := s.tx.Bucket(bucketIndexIDs).Delete(storeIDKey(meta.ID)); err != nil {
		return err
	}
	return s.tx.Bucket(bucketIndexes).Delete(indexCatalogKey(meta.StoreID, meta.Name))
}

// DeleteIndex removes an index's catalog entry and entries bucket.
func (s *Savepoint) DeleteIndex(storeID uint64, name string) error {
	meta, ok, err := s.GetIndexMeta(storeID, name)
	if err != nil {
		return err
	}
	if !ok {
		return idberrors.Newf(idberrors.NotFoundError, "no such index %q", name)
	}
	return s.deleteIndexEntry(meta)
}

// RenameIndex renames an index's catalog entry in place.
func (s *Savepoint) RenameIndex(storeID uint64, oldName, newName string) error {
	meta, ok, err := s.GetIndexMeta(storeID, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return idberrors.Newf(idberrors.NotFoundError, "no such index %q", oldName)
	}
	if err := s.tx.Bucket(bucketIndexes).Delete(indexCatalogKey(storeID, oldName)); err != nil {
		return err
	}
	meta.Name = newName
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.tx.Bucket(bucketIndexes).Put(indexCatalogKey(storeID, newName), data); err != nil {
		return err
	}
	return s.tx.Bucket(bucketIndexIDs).Put(storeIDKey(meta.ID), indexCatalogKey(storeID, newName))
}
