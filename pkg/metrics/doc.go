/*
Package metrics defines and registers the Prometheus metrics idbstore
exposes, and the health/readiness/liveness HTTP handlers the CLI's
serve subcommand mounts alongside them.

# Metrics catalog

idbstore_databases_total:
  - Type: Gauge
  - Description: total number of databases in the catalog

idbstore_storage_file_bytes{database}:
  - Type: Gauge
  - Description: size in bytes of a database's storage file

idbstore_object_stores_total{database}:
  - Type: Gauge
  - Description: total object stores by database

idbstore_transactions_total{mode, outcome}:
  - Type: Counter
  - Description: transactions by mode (readonly/readwrite/versionchange)
    and outcome (committed/aborted)

idbstore_transaction_duration_seconds{mode}:
  - Type: Histogram
  - Description: transaction lifetime, begin to commit or abort

idbstore_requests_total{source, outcome}:
  - Type: Counter
  - Description: requests by source (objectstore/index/cursor/factory)
    and outcome (success/error)

idbstore_request_duration_seconds{source}:
  - Type: Histogram
  - Description: time from a request's submission to its settled result

idbstore_cursors_opened_total{source}:
  - Type: Counter
  - Description: cursors opened by source (objectstore/index)

# Usage

	timer := metrics.NewTimer()
	// ... run a transaction to completion ...
	timer.ObserveDurationVec(metrics.TransactionDuration, string(mode))

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())
*/
package metrics
