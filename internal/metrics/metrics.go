// Package metrics owns the prometheus collectors for the authorization,
// cache and event layers.  A nil *Registry is valid and records nothing,
// which keeps tests and tools free of metric plumbing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the collectors registered on one prometheus registry.
type Registry struct {
	reg           *prometheus.Registry
	cacheRequests *prometheus.CounterVec
	cacheInvalid  prometheus.Counter
	events        *prometheus.CounterVec
	refresh       *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_cache_requests_total",
			Help: "Read-through cache lookups by key kind and result.",
		}, []string{"kind", "result"}),
		cacheInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_cache_invalidations_total",
			Help: "Cache keys deleted by mutation invalidation.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_events_total",
			Help: "Domain events by delivery result.",
		}, []string{"result"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_auth_refresh_total",
			Help: "Silent and explicit refresh attempts by outcome.",
		}, []string{"result"}),
	}
	r.reg.MustRegister(r.cacheRequests, r.cacheInvalid, r.events, r.refresh,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// CacheLookup records a lookup result ("hit", "miss", "error") for a key kind.
func (r *Registry) CacheLookup(kind, result string) {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues(kind, result).Inc()
}

// CacheInvalidated records n deleted keys.
func (r *Registry) CacheInvalidated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cacheInvalid.Add(float64(n))
}

// Event records an event bus outcome ("enqueued", "dropped", "delivered", "failed").
func (r *Registry) Event(result string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(result).Inc()
}

// Refresh records a refresh outcome.
func (r *Registry) Refresh(result string) {
	if r == nil {
		return
	}
	r.refresh.WithLabelValues(result).Inc()
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// CacheLookupCounter, EventCounter and RefreshCounter return single series
// so other packages can assert on them with testutil.
func (r *Registry) CacheLookupCounter(kind, result string) prometheus.Counter {
	return r.cacheRequests.WithLabelValues(kind, result)
}

func (r *Registry) EventCounter(result string) prometheus.Counter {
	return r.events.WithLabelValues(result)
}

func (r *Registry) RefreshCounter(result string) prometheus.Counter {
	return r.refresh.WithLabelValues(result)
}
