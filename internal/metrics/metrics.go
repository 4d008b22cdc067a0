// Package metrics provides Prometheus metrics for the cache core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Directory listing cache
	direntLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seacache_dirent_lookups_total",
			Help: "Total number of directory listing cache lookups",
		},
		[]string{"result"},
	)

	conditionalFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seacache_conditional_fetches_total",
			Help: "Total number of conditional directory listing fetches",
		},
		[]string{"result"},
	)

	blobEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seacache_blob_evictions_total",
			Help: "Total number of directory snapshot blobs deleted after their last reference was dropped",
		},
	)

	cacheWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seacache_cache_write_failures_total",
			Help: "Total number of failed best-effort cache writes",
		},
		[]string{"kind"},
	)

	// Resolver
	repoDirsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seacache_repo_dirs_created_total",
			Help: "Total number of local repo directories created",
		},
	)

	// File version cache
	fileFreshnessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seacache_file_freshness_checks_total",
			Help: "Total number of local copy freshness decisions",
		},
		[]string{"result"},
	)

	// Daemon
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seacache_refreshes_total",
			Help: "Total number of background refreshes",
		},
		[]string{"scope", "status"},
	)
)

// RecordDirentLookup records a listing lookup: "hit", "miss" or "corrupt".
func RecordDirentLookup(result string) {
	direntLookupsTotal.WithLabelValues(result).Inc()
}

// RecordConditionalFetch records a conditional fetch: "unchanged" or "changed".
func RecordConditionalFetch(result string) {
	conditionalFetchesTotal.WithLabelValues(result).Inc()
}

// RecordBlobEviction records a deleted snapshot blob.
func RecordBlobEviction() {
	blobEvictionsTotal.Inc()
}

// RecordCacheWriteFailure records a failed best-effort write.
func RecordCacheWriteFailure(kind string) {
	cacheWriteFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordRepoDirCreated records a newly created repo directory.
func RecordRepoDirCreated() {
	repoDirsCreatedTotal.Inc()
}

// RecordFileFreshness records a freshness decision: "fresh", "stale",
// "missing" or "offline".
func RecordFileFreshness(result string) {
	fileFreshnessTotal.WithLabelValues(result).Inc()
}

// RecordRefresh records a background refresh of scope.
func RecordRefresh(scope string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	refreshesTotal.WithLabelValues(scope, status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
