package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/idbstore/pkg/idbtypes"
)

var bucketDatabases = []byte("databases")

// Catalog is the shared (name, version) registry of every database the
// engine knows about, backed by one bbolt file independent of the
// per-database files (spec §6: list_databases / db_exists / db_version /
// set_db_version / delete_db).
type Catalog struct {
	db *bolt.DB
}

type catalogEntry struct {
	Version uint64
}

// OpenCatalog opens (creating if absent) the shared database registry
// file at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDatabases)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the catalog file.
func (c *Catalog) Close() error { return c.db.Close() }

// List returns every registered database in name order.
func (c *Catalog) List() ([]idbtypes.DatabaseInfo, error) {
	var out []idbtypes.DatabaseInfo
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDatabases)
		return b.ForEach(func(k, v []byte) error {
			var e catalogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, idbtypes.DatabaseInfo{Name: string(k), Version: e.Version})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether name is registered.
func (c *Catalog) Exists(name string) (bool, error) {
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketDatabases).Get([]byte(name)) != nil
		return nil
	})
	return found, err
}

// Version returns the stored version of name, or 0 if it does not exist.
func (c *Catalog) Version(name string) (uint64, error) {
	var v uint64
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDatabases).Get([]byte(name))
		if data == nil {
			return nil
		}
		var e catalogEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		v = e.Version
		return nil
	})
	return v, err
}

// SetVersion registers name (if new) or updates its stored version.
func (c *Catalog) SetVersion(name string, version uint64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(catalogEntry{Version: version})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDatabases).Put([]byte(name), data)
	})
}

// Delete removes name from the registry. Idempotent.
func (c *Catalog) Delete(name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDatabases).Delete([]byte(name))
	})
}
