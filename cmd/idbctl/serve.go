package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/idbstore/pkg/engine"
	"github.com/cuemby/idbstore/pkg/log"
	"github.com/cuemby/idbstore/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a metrics/health endpoint over the storage path's open databases",
	RunE:  runServe,
}

// factoryAdapter converts an *engine.Factory's idbtypes-typed results
// into the plain struct metrics.FactorySource expects, so pkg/metrics
// never needs to import pkg/engine.
type factoryAdapter struct {
	factory *engine.Factory
}

func (a factoryAdapter) List() ([]metrics.DatabaseInfo, error) {
	dbs, err := a.factory.List()
	if err != nil {
		return nil, err
	}
	out := make([]metrics.DatabaseInfo, len(dbs))
	for i, db := range dbs {
		out[i] = metrics.DatabaseInfo{Name: db.Name, Version: db.Version}
	}
	return out, nil
}

func (a factoryAdapter) StoreNamesFor(database string) ([]string, error) {
	return a.factory.StoreNamesFor(database)
}

func (a factoryAdapter) FilePathFor(database string) string {
	return a.factory.FilePathFor(database)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("factory", true, "")

	collector := metrics.NewCollector(factoryAdapter{factory: s.factory})
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.MetricsAddr}
	go func() {
		log.Info(fmt.Sprintf("serving metrics on %s", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server exited", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	metrics.RegisterComponent("storage", false, "shutting down")
	return srv.Close()
}
