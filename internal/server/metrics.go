package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"kinetic/pkg/kinetic"
)

// cacheCollector exports content cache population counters.
type cacheCollector struct {
	cache kinetic.ContentCache

	documents *prometheus.Desc
	tags      *prometheus.Desc
	creators  *prometheus.Desc
	indexes   *prometheus.Desc
	dropped   *prometheus.Desc
}

func newCacheCollector(cache kinetic.ContentCache) *cacheCollector {
	return &cacheCollector{
		cache: cache,
		documents: prometheus.NewDesc(
			"kinetic_cache_documents", "Documents currently held by the content cache.", nil, nil),
		tags: prometheus.NewDesc(
			"kinetic_cache_tags", "Taxonomy entries currently held by the content cache.", nil, nil),
		creators: prometheus.NewDesc(
			"kinetic_cache_creators", "Creator profiles currently held by the content cache.", nil, nil),
		indexes: prometheus.NewDesc(
			"kinetic_cache_indexes", "Listing snapshots currently held by the content cache.", nil, nil),
		dropped: prometheus.NewDesc(
			"kinetic_cache_dropped_total", "Malformed records rejected during hydration.", nil, nil),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.documents
	ch <- c.tags
	ch <- c.creators
	ch <- c.indexes
	ch <- c.dropped
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.documents, prometheus.GaugeValue, float64(stats.Documents))
	ch <- prometheus.MustNewConstMetric(c.tags, prometheus.GaugeValue, float64(stats.Tags))
	ch <- prometheus.MustNewConstMetric(c.creators, prometheus.GaugeValue, float64(stats.Creators))
	ch <- prometheus.MustNewConstMetric(c.indexes, prometheus.GaugeValue, float64(stats.Indexes))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(stats.Dropped))
}

var _ prometheus.Collector = (*cacheCollector)(nil)

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMetrics counts requests by route pattern, method, and status.
func requestMetrics(requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			requests.WithLabelValues(pattern, r.Method, strconv.Itoa(recorder.status)).Inc()
		})
	}
}
