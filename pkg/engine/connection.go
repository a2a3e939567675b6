package engine

import (
	"sort"
	"sync"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/metrics"
	"github.com/cuemby/idbstore/pkg/storage"
	"github.com/cuemby/idbstore/pkg/txn"
)

// Connection is a live database handle — spec.md §4.9's "connection" —
// an event.Target whose parent is nil (it is the propagation root for
// every transaction and request it produces) and whose children are the
// transactions it opens.
//
// It caches the set of object-store names the schema currently has, the
// one piece of in-memory state spec.md §4.6's metadata-revert journal
// exists to repair: a version-change transaction's create/delete calls
// update this cache immediately (structural mutations are synchronous),
// and an aborted transaction's journal replay puts it back.
type Connection struct {
	*event.EventTarget

	name    string
	store   *storage.DB
	sched   *Scheduler
	eventsSched *event.Scheduler

	mu         sync.Mutex
	version    uint64
	storeNames map[string]bool
	closed     bool
	onClose    func()
}

// Scheduler is the per-connection transaction scheduler alias, kept as
// its own name in this package so callers don't need to import pkg/txn
// just to hold one.
type Scheduler = txn.Scheduler

func newConnection(name string, version uint64, storeNames []string, store *storage.DB, sched *Scheduler, eventsSched *event.Scheduler) *Connection {
	c := &Connection{
		EventTarget: event.NewTarget(nil),
		name:        name,
		store:       store,
		sched:       sched,
		eventsSched: eventsSched,
		version:     version,
		storeNames:  make(map[string]bool, len(storeNames)),
	}
	for _, n := range storeNames {
		c.storeNames[n] = true
	}
	return c
}

// Name returns the database name this connection is open against.
func (c *Connection) Name() string { return c.name }

// Version returns the connection's current schema version.
func (c *Connection) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Connection) setVersion(v uint64) {
	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
}

// ObjectStoreNames returns the live set of object store names, sorted.
func (c *Connection) ObjectStoreNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.storeNames))
	for n := range c.storeNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c *Connection) addStoreName(name string) {
	c.mu.Lock()
	c.storeNames[name] = true
	c.mu.Unlock()
}

func (c *Connection) removeStoreName(name string) {
	c.mu.Lock()
	delete(c.storeNames, name)
	c.mu.Unlock()
}

// Closed reports whether Close has been called on this connection.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close marks the connection closed. A closed connection no longer
// receives versionchange notifications; the factory drops it from its
// live-connection registry. Begin does not check the closed flag, so a
// closed connection still hands out transactions.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose()
	}
}

// Begin opens a transaction scoped to storeNames in the given mode,
// enrolling it with the connection's scheduler (spec.md §4.4). Its
// commit or abort is timed and counted against pkg/metrics'
// idbstore_transactions_total/idbstore_transaction_duration_seconds.
func (c *Connection) Begin(storeNames []string, mode idbtypes.TransactionMode, durability idbtypes.Durability) *Transaction {
	inner := txn.New(c, storeNames, mode, durability, c.store, c.sched, c.eventsSched)
	t := &Transaction{Transaction: inner, conn: c}

	timer := metrics.NewTimer()
	modeLabel := string(mode)
	inner.AddEventListener(event.TypeComplete, func(*event.Event) error {
		metrics.TransactionsTotal.WithLabelValues(modeLabel, "committed").Inc()
		timer.ObserveDurationVec(metrics.TransactionDuration, modeLabel)
		return nil
	})
	inner.AddEventListener(event.TypeAbort, func(*event.Event) error {
		metrics.TransactionsTotal.WithLabelValues(modeLabel, "aborted").Inc()
		timer.ObserveDurationVec(metrics.TransactionDuration, modeLabel)
		return nil
	})
	return t
}

// VersionChangeDetail is the Detail payload of a "versionchange" event:
// newVersion is nil for deleteDatabase (spec.md §4.9: "newVersion=null").
type VersionChangeDetail struct {
	OldVersion uint64
	NewVersion *uint64
}

// notifyVersionChange fires a non-cancelable "versionchange" event at
// this connection, the signal spec.md §4.9 sends to incumbent
// connections when a concurrent open() requests a higher version, or
// when deleteDatabase is about to remove the database outright.
func (c *Connection) notifyVersionChange(oldVersion uint64, newVersion *uint64, reportErr func(error)) {
	evt := event.NewEvent(event.TypeVersionChange, false, false)
	evt.Detail = VersionChangeDetail{OldVersion: oldVersion, NewVersion: newVersion}
	event.Dispatch(c, evt, nil, reportErr)
}
