package assetcache

import "github.com/prometheus/client_golang/prometheus"

// Stats is a point-in-time snapshot of cache effectiveness, kept as a
// plain struct so callers who just want numbers don't need to know this
// package also exports them to Prometheus.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Decodes      uint64
	VfsErrors    uint64
	DecodeErrors uint64
}

// cacheMetrics is the ambient prometheus-backed observability layer
// behind Stats. It is purely observational: nothing in the coordinator's
// control flow branches on a metric's value.
type cacheMetrics struct {
	hits         prometheus.Counter
	misses       prometheus.Counter
	decodes      prometheus.Counter
	vfsErrors    prometheus.Counter
	decodeErrors prometheus.Counter
	pinnedGauge  prometheus.Gauge
}

// newCacheMetrics builds a cacheMetrics instance registered under name,
// using reg if non-nil (otherwise the metrics are created but never
// registered, which is convenient for tests that don't want to collide
// on the default registry).
func newCacheMetrics(reg prometheus.Registerer, name string) *cacheMetrics {
	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "assetcache",
			Name:        "hits_total",
			Help:        "Number of Get calls satisfied without a decode.",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "assetcache",
			Name:        "misses_total",
			Help:        "Number of Get calls that required a decode attempt.",
			ConstLabels: labels,
		}),
		decodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "assetcache",
			Name:        "decodes_total",
			Help:        "Number of values successfully decoded and published.",
			ConstLabels: labels,
		}),
		vfsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "assetcache",
			Name:        "vfs_errors_total",
			Help:        "Number of decode attempts that failed opening, sizing or reading from the Vfs.",
			ConstLabels: labels,
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "assetcache",
			Name:        "decode_errors_total",
			Help:        "Number of decode attempts that failed in Decode or EstimateCost.",
			ConstLabels: labels,
		}),
		pinnedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "assetcache",
			Name:        "pinned_entries",
			Help:        "Current number of pinned entries.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.decodes, m.vfsErrors, m.decodeErrors, m.pinnedGauge)
	}
	return m
}
