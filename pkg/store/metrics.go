package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commits tracks published episodes by backend
	Commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episode_store_commits_total",
			Help: "Total number of episode files published",
		},
		[]string{"backend"}, // "local", "blob"
	)

	// Aborts tracks discarded attempts by backend
	Aborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episode_store_aborts_total",
			Help: "Total number of discarded download attempts",
		},
		[]string{"backend"},
	)

	// StoreErrors tracks storage operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episode_store_errors_total",
			Help: "Total number of storage operation errors",
		},
		[]string{"operation"}, // "create", "write", "commit", "abort"
	)
)
