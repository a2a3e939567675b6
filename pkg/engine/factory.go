package engine

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/log"
	"github.com/cuemby/idbstore/pkg/metrics"
	"github.com/cuemby/idbstore/pkg/storage"
	"github.com/cuemby/idbstore/pkg/txn"
)

// dbEntry is the shared, per-database-name state a Factory keeps open
// across however many live connections reference it: the storage
// driver, the transaction scheduler every connection's transactions
// enroll with, and the live connection registry spec.md §4.9 needs for
// versionchange fan-out.
type dbEntry struct {
	store       *storage.DB
	sched       *Scheduler
	connections []*Connection
}

// Factory is the registry of open databases, spec.md §4.9's "database"
// concept made explicit (SPEC_FULL.md §4.10): never a package-level
// singleton, so independent tests get independent storage roots.
type Factory struct {
	storagePath string
	catalog     *storage.Catalog
	eventsSched *event.Scheduler

	mu  sync.Mutex
	dbs map[string]*dbEntry
}

// NewFactory opens (creating if absent) the shared catalog file under
// storagePath and returns a Factory ready to open or delete databases
// there.
func NewFactory(storagePath string, eventsSched *event.Scheduler) (*Factory, error) {
	if err := os.MkdirAll(storagePath, 0o700); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}
	cat, err := storage.OpenCatalog(filepath.Join(storagePath, "catalog.db"))
	if err != nil {
		return nil, err
	}
	return &Factory{
		storagePath: storagePath,
		catalog:     cat,
		eventsSched: eventsSched,
		dbs:         make(map[string]*dbEntry),
	}, nil
}

// Close closes the shared catalog file. Individual database files stay
// open until their last connection closes.
func (f *Factory) Close() error { return f.catalog.Close() }

// List returns every registered database in name order.
func (f *Factory) List() ([]idbtypes.DatabaseInfo, error) { return f.catalog.List() }

// StoreNamesFor returns the current object store names for an
// already-open (or not-yet-open) database, for the metrics collector's
// point-in-time gauges.
func (f *Factory) StoreNamesFor(name string) ([]string, error) {
	e, err := f.entry(name)
	if err != nil {
		return nil, err
	}
	return storeNamesOf(e.store)
}

// FilePathFor returns the on-disk path of a database's storage file,
// for the metrics collector to stat.
func (f *Factory) FilePathFor(name string) string {
	return filepath.Join(f.storagePath, dbFileName(name))
}

func dbFileName(name string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%x.db", h.Sum64())
}

func (f *Factory) entry(name string) (*dbEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.dbs[name]; ok {
		return e, nil
	}
	store, err := storage.OpenDB(filepath.Join(f.storagePath, dbFileName(name)))
	if err != nil {
		return nil, err
	}
	e := &dbEntry{store: store, sched: txn.NewScheduler()}
	f.dbs[name] = e
	return e, nil
}

func (f *Factory) forgetIfIdle(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.dbs[name]
	if !ok || len(e.connections) > 0 {
		return
	}
	e.store.Close()
	delete(f.dbs, name)
}

func (f *Factory) addConnection(name string, conn *Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.dbs[name]
	e.connections = append(e.connections, conn)
}

func (f *Factory) removeConnection(name string, conn *Connection) {
	f.mu.Lock()
	e, ok := f.dbs[name]
	if ok {
		for i, c := range e.connections {
			if c == conn {
				e.connections = append(e.connections[:i], e.connections[i+1:]...)
				break
			}
		}
	}
	f.mu.Unlock()
	f.forgetIfIdle(name)
}

func (f *Factory) liveConnections(name string) []*Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.dbs[name]
	if !ok {
		return nil
	}
	out := make([]*Connection, len(e.connections))
	copy(out, e.connections)
	return out
}

// storeNamesOf reads the current catalog of store names for an
// already-open database.
func storeNamesOf(store *storage.DB) ([]string, error) {
	sp, err := store.Begin(false)
	if err != nil {
		return nil, err
	}
	defer sp.Release()
	metas, err := sp.ListStores()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return names, nil
}

// Open implements spec.md §4.9's open(name, version?): a deferred task
// that resolves the database's new version, raises VersionError if an
// explicit version is behind the stored one, and otherwise either opens
// the connection directly (no version change) or drives a version-change
// transaction through upgradeneeded before succeeding. version nil means
// "use the existing version, or 1 for a brand-new database".
func (f *Factory) Open(name string, version *uint64) *event.Request {
	req := event.NewRequest(nil)
	req.Source = string(idbtypes.SourceFactory)
	start := time.Now()

	f.eventsSched.PostTask(func() {
		e, err := f.entry(name)
		if err != nil {
			f.failOpen(req, start, err)
			return
		}

		stored, err := f.catalog.Version(name)
		if err != nil {
			f.failOpen(req, start, err)
			return
		}
		existed, err := f.catalog.Exists(name)
		if err != nil {
			f.failOpen(req, start, err)
			return
		}

		var target uint64
		switch {
		case version != nil:
			target = *version
		case existed:
			target = stored
		default:
			target = 1
		}
		if version != nil && existed && *version < stored {
			f.failOpen(req, start, idberrors.Newf(idberrors.VersionError, "requested version %d is behind stored version %d", *version, stored))
			return
		}

		storeNames, err := storeNamesOf(e.store)
		if err != nil {
			f.failOpen(req, start, err)
			return
		}

		if existed && target == stored {
			conn := newConnection(name, stored, storeNames, e.store, e.sched, f.eventsSched)
			conn.onClose = func() { f.removeConnection(name, conn) }
			f.addConnection(name, conn)
			req.Succeed(conn)
			dispatchRequestResult(req, start)
			return
		}

		for _, incumbent := range f.liveConnections(name) {
			incumbent.notifyVersionChange(stored, &target, reportEventError)
		}

		conn := newConnection(name, stored, storeNames, e.store, e.sched, f.eventsSched)
		conn.onClose = func() { f.removeConnection(name, conn) }
		f.addConnection(name, conn)

		tr := conn.Begin(storeNames, idbtypes.ModeVersionChange, idbtypes.DurabilityDefault)
		req.SetParent(tr)

		evt := event.NewEvent(event.TypeUpgradeNeeded, false, false)
		evt.Detail = VersionChangeDetail{OldVersion: stored, NewVersion: &target}
		event.Dispatch(req, evt, nil, reportEventError)

		tr.AddEventListener(event.TypeComplete, func(*event.Event) error {
			if err := f.catalog.SetVersion(name, target); err != nil {
				req.Fail(err)
			} else {
				conn.setVersion(target)
				req.Succeed(conn)
			}
			dispatchRequestResult(req, start)
			return nil
		})
		tr.AddEventListener(event.TypeAbort, func(*event.Event) error {
			conn.Close()
			req.Fail(idberrors.New(idberrors.AbortError, "version-change transaction aborted"))
			dispatchRequestResult(req, start)
			return nil
		})
	})

	return req
}

func (f *Factory) failOpen(req *event.Request, start time.Time, err error) {
	req.Fail(err)
	dispatchRequestResult(req, start)
}

// dispatchRequestResult fires the success or error event a completed
// factory request settled with, and records its outcome and latency
// against idbstore_requests_total/idbstore_request_duration_seconds.
func dispatchRequestResult(req *event.Request, start time.Time) {
	outcome := "success"
	if req.Err != nil {
		outcome = "error"
	}
	metrics.RequestsTotal.WithLabelValues(req.Source, outcome).Inc()
	metrics.RequestDuration.WithLabelValues(req.Source).Observe(time.Since(start).Seconds())

	if req.Err != nil {
		req.DispatchError(reportEventError)
		return
	}
	req.DispatchSuccess(reportEventError)
}

func reportEventError(err error) {
	log.Errorf("event listener exception", err)
}

// DeleteDatabase implements spec.md §4.9's deleteDatabase(name): notify
// every live connection with a versionchange event (newVersion=nil),
// then remove the database's storage and catalog entry, then fire the
// request's success as a version-change event with newVersion=nil.
func (f *Factory) DeleteDatabase(name string) *event.Request {
	req := event.NewRequest(nil)
	req.Source = string(idbtypes.SourceFactory)
	start := time.Now()

	f.eventsSched.PostTask(func() {
		stored, err := f.catalog.Version(name)
		if err != nil {
			f.failOpen(req, start, err)
			return
		}

		for _, incumbent := range f.liveConnections(name) {
			incumbent.notifyVersionChange(stored, nil, reportEventError)
		}

		f.mu.Lock()
		e, open := f.dbs[name]
		if open {
			e.store.Close()
			delete(f.dbs, name)
		}
		f.mu.Unlock()

		if err := os.Remove(filepath.Join(f.storagePath, dbFileName(name))); err != nil && !os.IsNotExist(err) {
			f.failOpen(req, start, err)
			return
		}
		if err := f.catalog.Delete(name); err != nil {
			f.failOpen(req, start, err)
			return
		}

		req.Succeed(nil)
		metrics.RequestsTotal.WithLabelValues(req.Source, "success").Inc()
		metrics.RequestDuration.WithLabelValues(req.Source).Observe(time.Since(start).Seconds())
		evt := event.NewEvent(event.TypeSuccess, false, false)
		evt.Detail = VersionChangeDetail{OldVersion: stored, NewVersion: nil}
		event.Dispatch(req, evt, req.OnSuccess, reportEventError)
	})

	return req
}
