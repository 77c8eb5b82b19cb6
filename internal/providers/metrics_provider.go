package providers

import (
	"podcache/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncDownloads(result string)
	AddDownloadedBytes(n int64)
	ObserveDownloadDuration(duration time.Duration)
	IncEvictions(reason string, count int)
	SetEpisodesStored(count int)
	SetBytesStored(bytes int64)
}

// Download result labels.
const (
	ResultOK        = "ok"
	ResultFailed    = "failed"
	ResultDuplicate = "duplicate"
)

// Eviction reason labels.
const (
	ReasonManual   = "manual"
	ReasonAge      = "age"
	ReasonListened = "listened"
	ReasonClear    = "clear"
)

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	downloadsTotal   *prometheus.CounterVec
	downloadedBytes  prometheus.Counter
	downloadDuration prometheus.Histogram
	evictionsTotal   *prometheus.CounterVec
	episodesStored   prometheus.Gauge
	bytesStored      prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncDownloads(result string) {
	m.downloadsTotal.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) AddDownloadedBytes(n int64) {
	m.downloadedBytes.Add(float64(n))
}

func (m *MetricsProvider) ObserveDownloadDuration(duration time.Duration) {
	m.downloadDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncEvictions(reason string, count int) {
	m.evictionsTotal.WithLabelValues(reason).Add(float64(count))
}

func (m *MetricsProvider) SetEpisodesStored(count int) {
	m.episodesStored.Set(float64(count))
}

func (m *MetricsProvider) SetBytesStored(bytes int64) {
	m.bytesStored.Set(float64(bytes))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "podcache_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podcache_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podcache_response_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podcache_response_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		downloadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "podcache_downloads_total",
			Help: "Total number of episode downloads by result",
		}, []string{"result"}),

		downloadedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podcache_downloaded_bytes_total",
			Help: "Total bytes fetched from remote audio sources",
		}),

		downloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "podcache_download_duration_seconds",
			Help:    "Episode download duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		evictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "podcache_evictions_total",
			Help: "Total number of evicted episodes by reason",
		}, []string{"reason"}),

		episodesStored: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "podcache_episodes_stored",
			Help: "Number of episodes currently stored offline",
		}),

		bytesStored: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "podcache_bytes_stored",
			Help: "Bytes of audio currently stored offline",
		}),
	}

	return m
}

type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncDownloads(_ string)                            {}
func (n *noopMetrics) AddDownloadedBytes(_ int64)                       {}
func (n *noopMetrics) ObserveDownloadDuration(_ time.Duration)          {}
func (n *noopMetrics) IncEvictions(_ string, _ int)                     {}
func (n *noopMetrics) SetEpisodesStored(_ int)                          {}
func (n *noopMetrics) SetBytesStored(_ int64)                           {}
