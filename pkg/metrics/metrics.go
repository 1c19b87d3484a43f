// Package metrics exposes the Prometheus registry used by episode-fetch.
// All metrics are defined in their respective packages (fetch, batch, store,
// report) via promauto and registered on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by episode-fetch.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Candidate Metrics (pkg/fetch):
//   - episode_fetch_attempts_total{rule, result} (Counter): attempts by rule; result is
//     "success" or an error class
//   - episode_fetch_attempt_duration_seconds{rule} (Histogram): attempt duration
//   - episode_fetch_bytes_total{rule} (Counter): bytes written by successful attempts
//   - episode_fetch_errors_total{class} (Counter): failures by class (client, server, network, io)
//   - episode_items_total{status} (Counter): finished items (success, exhausted, canceled)
//
// Scheduler Metrics (pkg/batch):
//   - episode_batch_items_in_flight (Gauge): items currently being fetched
//   - episode_batch_groups_total (Counter): completed groups (groups strategy)
//
// Storage Metrics (pkg/store):
//   - episode_store_commits_total{backend} (Counter): published files
//   - episode_store_aborts_total{backend} (Counter): discarded attempts
//   - episode_store_errors_total{operation} (Counter): storage errors
//
// Reporting Metrics (pkg/report):
//   - episode_report_errors_total{reporter} (Counter): failed outcome publications
//     (reporter is "redis" or "postgres")
//
// Example Prometheus Queries:
//
//   # Which origin serves most episodes
//   sum by (rule) (rate(episode_fetch_attempts_total{result="success"}[5m]))
//
//   # Fallback pressure: failed candidates per finished item
//   sum(rate(episode_fetch_errors_total[5m])) / sum(rate(episode_items_total[5m]))
//
//   # Throughput
//   sum(rate(episode_fetch_bytes_total[1m]))
