package metrics

import (
	"os"
	"time"
)

// FactorySource is the subset of engine.Factory a Collector polls —
// named here rather than imported directly so pkg/metrics never
// depends on pkg/engine (engine already depends on metrics).
type FactorySource interface {
	List() ([]DatabaseInfo, error)
	StoreNamesFor(database string) ([]string, error)
	FilePathFor(database string) string
}

// DatabaseInfo mirrors idbtypes.DatabaseInfo's two fields, duplicated
// here to keep this package's dependency edge one-directional.
type DatabaseInfo struct {
	Name    string
	Version uint64
}

// Collector periodically samples a Factory and updates the gauge
// metrics that only make sense as point-in-time snapshots (database
// count, store count, file size) rather than per-operation counters.
type Collector struct {
	factory FactorySource
	stopCh  chan struct{}
}

// NewCollector creates a metrics collector over factory.
func NewCollector(factory FactorySource) *Collector {
	return &Collector{factory: factory, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	dbs, err := c.factory.List()
	if err != nil {
		return
	}
	DatabasesTotal.Set(float64(len(dbs)))

	for _, db := range dbs {
		names, err := c.factory.StoreNamesFor(db.Name)
		if err == nil {
			ObjectStoresTotal.WithLabelValues(db.Name).Set(float64(len(names)))
		}
		if info, err := os.Stat(c.factory.FilePathFor(db.Name)); err == nil {
			StorageFileBytes.WithLabelValues(db.Name).Set(float64(info.Size()))
		}
	}
}
