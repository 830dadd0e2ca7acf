// Package metrics instruments the trie store with Prometheus collectors:
// counters and histograms for reads, writes, scans, and commits, registered
// against the prometheus.Registerer passed to New so a host binary can expose them
// over /metrics without the store package depending on net/http itself.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every metric the trie store and history layer emit.
// A nil *Collectors is valid and every method becomes a no-op, so callers
// that don't want metrics never have to special-case the hot path.
type Collectors struct {
	reads   *prometheus.CounterVec
	scans   *prometheus.CounterVec
	writes  *prometheus.CounterVec
	commits *prometheus.CounterVec

	readLatency   prometheus.Histogram
	writeLatency  prometheus.Histogram
	commitLatency prometheus.Histogram

	trackingCopyCacheHits   prometheus.Counter
	trackingCopyCacheMisses prometheus.Counter

	backendGetLatency prometheus.Histogram
	backendPutLatency prometheus.Histogram
}

const namespace = "triestore"

// New creates a Collectors and registers every metric with reg. Passing
// prometheus.NewRegistry() keeps the store's metrics isolated from the
// default global registry, which is convenient in tests.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Number of trie read operations, labeled by outcome.",
		}, []string{"outcome"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Number of trie scan descents, labeled by outcome.",
		}, []string{"outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Number of trie write operations, labeled by outcome.",
		}, []string{"outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of history commits, labeled by outcome.",
		}, []string{"outcome"}),
		readLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_duration_seconds",
			Help:      "Latency of trie read operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12),
		}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Latency of trie write operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12),
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Latency of history commits, including the backend write transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
		}),
		trackingCopyCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_copy_cache_hits_total",
			Help:      "Reads served from the tracking copy's local value cache.",
		}),
		trackingCopyCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_copy_cache_misses_total",
			Help:      "Reads that missed the tracking copy's local value cache and fell through to the trie.",
		}),
		backendGetLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_get_duration_seconds",
			Help:      "Latency of a single store.Environment node Get, independent of trie descent.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
		backendPutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_put_duration_seconds",
			Help:      "Latency of a single store.Environment node Put, independent of trie descent.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(c.reads, c.scans, c.writes, c.commits,
			c.readLatency, c.writeLatency, c.commitLatency,
			c.trackingCopyCacheHits, c.trackingCopyCacheMisses,
			c.backendGetLatency, c.backendPutLatency)
	}
	return c
}

func (c *Collectors) ObserveRead(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.reads.WithLabelValues(outcome).Inc()
	c.readLatency.Observe(d.Seconds())
}

func (c *Collectors) ObserveScan(outcome string) {
	if c == nil {
		return
	}
	c.scans.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ObserveWrite(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.writes.WithLabelValues(outcome).Inc()
	c.writeLatency.Observe(d.Seconds())
}

func (c *Collectors) ObserveCommit(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.commits.WithLabelValues(outcome).Inc()
	c.commitLatency.Observe(d.Seconds())
}

func (c *Collectors) ObserveBackendGet(d time.Duration) {
	if c == nil {
		return
	}
	c.backendGetLatency.Observe(d.Seconds())
}

func (c *Collectors) ObserveBackendPut(d time.Duration) {
	if c == nil {
		return
	}
	c.backendPutLatency.Observe(d.Seconds())
}

func (c *Collectors) CacheHit() {
	if c == nil {
		return
	}
	c.trackingCopyCacheHits.Inc()
}

func (c *Collectors) CacheMiss() {
	if c == nil {
		return
	}
	c.trackingCopyCacheMisses.Inc()
}
