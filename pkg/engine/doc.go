// Package engine implements the object store & index engine, the cursor
// engine, and the factory/connection lifecycle (spec.md §4.7–§4.9): the
// layer that turns validated keys and storage-driver CRUD into the full
// add/put/get/delete/cursor surface, plus open/deleteDatabase
// orchestration with upgradeneeded and versionchange fan-out.
//
// engine sits directly on pkg/txn (transaction scheduling and the
// active-flag state machine), pkg/storage (the bbolt-backed driver), and
// pkg/keypath/pkg/idbkey (key extraction and encoding). It owns no
// concurrency primitives of its own beyond what those packages already
// serialize through.
package engine
