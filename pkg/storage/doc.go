/*
Package storage is the storage driver from spec §6: the only package the
rest of the engine uses to reach persistent state. It exposes concrete
types (Catalog, DB, Savepoint, BoltCursor), not a Go interface, and is
backed by go.etcd.io/bbolt, chosen because bbolt already
orders bucket keys by unsigned byte
comparison, which is exactly what idbkey.Encode needs from the backing
store, and because bbolt's manual Tx.Begin/Commit/Rollback maps one to one
onto spec §4.5's "one savepoint per transaction, lazily begun on first
mutating operation".

Catalog manages the (name, version) registry of databases shared by the
whole engine (one bbolt file, "catalog.db" under the storage path). DB manages the per-database
catalog of stores and indexes plus their data, and hands out Savepoint
handles — each Savepoint wraps exactly one held-open *bolt.Tx and is the
unit every Connection's transaction core operates against.

Bucket layout per database file:

  - "stores": store name -> JSON idbtypes.StoreMeta
  - "indexes": "<storeID>/<indexName>" -> JSON idbtypes.IndexMeta
  - "records:<storeID>": idbkey-encoded primary key -> serialized record bytes
  - "index:<indexID>": idbkey-encoded index key ++ idbkey-encoded primary
    key -> the primary key bytes again, so an index cursor can read off
    the primary key without re-decoding the composite key.
*/
package storage
