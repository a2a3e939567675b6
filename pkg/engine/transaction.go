package engine

import (
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/storage"
	"github.com/cuemby/idbstore/pkg/txn"
)

// Transaction is the engine-level handle a connection hands back from
// Begin: spec.md §4.7's object-store lookup plus, for version-change
// transactions, the structural mutation surface (§3: "created/deleted/
// renamed only inside version-change transaction").
type Transaction struct {
	*txn.Transaction
	conn *Connection
}

// ObjectStore returns a handle to a named store within this
// transaction. Per spec.md's open question, accessing a store after the
// transaction has finished raises InvalidStateError — distinct from the
// TransactionInactiveError a data operation on an inactive-but-not-yet-
// finished transaction raises. ObjectStore does not itself validate that
// name exists; each operation's closure does, against the live catalog,
// so a store deleted earlier in the same transaction is reflected
// immediately.
func (t *Transaction) ObjectStore(name string) (*ObjectStore, error) {
	if t.State() == idbtypes.StateFinished {
		return nil, idberrors.New(idberrors.InvalidStateError, "transaction has finished")
	}
	return &ObjectStore{name: name, tr: t}, nil
}

// CreateObjectStore creates store name with the given key-path
// configuration, legal only inside a version-change transaction
// (spec.md §7). keyPath of length 0 means out-of-line keys; length 1
// with keyPathIsArray false is a single dotted path; keyPathIsArray true
// treats keyPath as an ordered sequence.
func (t *Transaction) CreateObjectStore(name string, keyPath []string, keyPathIsArray, autoIncrement bool) (*ObjectStore, error) {
	if t.Mode != idbtypes.ModeVersionChange {
		return nil, idberrors.New(idberrors.InvalidStateError, "createObjectStore is only legal inside a version-change transaction")
	}
	emptyPath := len(keyPath) == 1 && keyPath[0] == ""
	if autoIncrement && (keyPathIsArray || emptyPath) {
		return nil, idberrors.New(idberrors.InvalidAccessError, "autoIncrement cannot be combined with an array or empty-string key path")
	}
	if len(keyPath) > 0 {
		if _, err := buildKeyPath(keyPath, keyPathIsArray); err != nil {
			return nil, err
		}
	}

	_, err := t.RunSync(func(sp *storage.Savepoint) (any, error) {
		if _, exists, err := sp.GetStoreMeta(name); err != nil {
			return nil, err
		} else if exists {
			return nil, idberrors.Newf(idberrors.ConstraintError, "object store %q already exists", name)
		}
		meta := &idbtypes.StoreMeta{
			Name:           name,
			KeyPath:        keyPath,
			KeyPathIsArray: keyPathIsArray,
			AutoIncrement:  autoIncrement,
			CurrentKey:     1,
		}
		return nil, sp.CreateStore(meta)
	})
	if err != nil {
		return nil, err
	}
	t.conn.addStoreName(name)
	t.RecordRevert(func() { t.conn.removeStoreName(name) })
	return &ObjectStore{name: name, tr: t}, nil
}

// DeleteObjectStore removes store name, legal only inside a
// version-change transaction.
func (t *Transaction) DeleteObjectStore(name string) error {
	if t.Mode != idbtypes.ModeVersionChange {
		return idberrors.New(idberrors.InvalidStateError, "deleteObjectStore is only legal inside a version-change transaction")
	}
	_, err := t.RunSync(func(sp *storage.Savepoint) (any, error) {
		return nil, sp.DeleteStore(name)
	})
	if err != nil {
		return err
	}
	t.conn.removeStoreName(name)
	t.RecordRevert(func() { t.conn.addStoreName(name) })
	return nil
}
