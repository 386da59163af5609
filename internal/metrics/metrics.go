// Package metrics exposes Prometheus metrics for the HTTP layer, the ranking
// cache and the score store.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sundayezeilo/shortlinks/internal/score"
)

const DefaultNamespace = "shortlinks"

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cacheRequests *prometheus.CounterVec
	cacheErrors   *prometheus.CounterVec

	scoreIncrements *prometheus.CounterVec
	scoreErrors     *prometheus.CounterVec
	scoreDuration   *prometheus.HistogramVec
}

// Config holds configuration for the recorder.
type Config struct {
	Namespace string
	// Registry defaults to a new registry with the Go runtime and process
	// collectors attached.
	Registry *prometheus.Registry
	Buckets  []float64
}

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(config *Config) *Recorder {
	if config == nil {
		config = &Config{}
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	auto := promauto.With(registry)

	return &Recorder{
		registry: registry,

		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),

		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   buckets,
		}, []string{"route", "method"}),

		cacheRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Ranking cache lookups by cache name and result.",
		}, []string{"cache", "result"}),

		cacheErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Ranking cache operations that failed and were bypassed.",
		}, []string{"cache", "op"}),

		scoreIncrements: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "increments_total",
			Help:      "Score increments by board.",
		}, []string{"board"}),

		scoreErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "errors_total",
			Help:      "Failed score store operations.",
		}, []string{"op"}),

		scoreDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "operation_duration_seconds",
			Help:      "Score store latency by operation, failures included.",
			Buckets:   buckets,
		}, []string{"op"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) CacheHit(name string)  { r.cacheRequests.WithLabelValues(name, "hit").Inc() }
func (r *Recorder) CacheMiss(name string) { r.cacheRequests.WithLabelValues(name, "miss").Inc() }

func (r *Recorder) CacheError(name, op string) {
	r.cacheErrors.WithLabelValues(name, op).Inc()
}

// InstrumentHandler records request count and latency for one route. The
// route is the registered pattern, never the raw path, to bound cardinality.
func (r *Recorder) InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, req)

		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(m.Code)).Inc()
		r.httpRequestDuration.WithLabelValues(route, req.Method).Observe(m.Duration.Seconds())
	})
}

// InstrumentCounter wraps c so that operations are timed and increments and
// failures are counted.
func (r *Recorder) InstrumentCounter(c score.Counter) score.Counter {
	return &instrumentedCounter{next: c, rec: r}
}

type instrumentedCounter struct {
	next score.Counter
	rec  *Recorder
}

func (c *instrumentedCounter) observe(op string, start time.Time, err error) {
	c.rec.scoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.rec.scoreErrors.WithLabelValues(op).Inc()
	}
}

func (c *instrumentedCounter) NextID(ctx context.Context) (int64, error) {
	start := time.Now()
	id, err := c.next.NextID(ctx)
	c.observe("next_id", start, err)
	return id, err
}

func (c *instrumentedCounter) Increment(ctx context.Context, board score.Board, member string, amount float64) (float64, error) {
	start := time.Now()
	v, err := c.next.Increment(ctx, board, member, amount)
	c.observe("increment", start, err)
	if err == nil {
		c.rec.scoreIncrements.WithLabelValues(string(board)).Inc()
	}
	return v, err
}

func (c *instrumentedCounter) Top(ctx context.Context, board score.Board, limit int) ([]score.Entry, error) {
	start := time.Now()
	entries, err := c.next.Top(ctx, board, limit)
	c.observe("top", start, err)
	return entries, err
}
