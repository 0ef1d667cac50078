// Package metrics exposes the bridge's Prometheus instrumentation: per-tick
// cycle duration, per-group read outcomes, and the published work-site
// state gauge. All metrics carry the "bridge_" prefix.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics acts as
// a no-op for every method, so callers never need to branch on whether
// metrics are enabled.
type Metrics struct {
	CycleDuration prometheus.Histogram
	GroupReads    *prometheus.CounterVec
	SiteState     *prometheus.GaugeVec
	RDSWrites     *prometheus.CounterVec
}

// New creates and registers the bridge's metrics against registerer. If
// registerer is nil, prometheus.DefaultRegisterer is used.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_sync_cycle_duration_seconds",
			Help:    "Duration of one sync loop tick.",
			Buckets: prometheus.DefBuckets,
		}),
		GroupReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_group_reads_total",
			Help: "Modbus group read attempts by outcome (ok, backoff, error).",
		}, []string{"group", "status"}),
		SiteState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_site_state",
			Help: "Last effective state published for a site (1=FILLED, 0=EMPTY).",
		}, []string{"site"}),
		RDSWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_rds_writes_total",
			Help: "Dispatch server work-site writes by outcome (ok, error).",
		}, []string{"status"}),
	}

	registerer.MustRegister(m.CycleDuration, m.GroupReads, m.SiteState, m.RDSWrites)
	return m
}

// ObserveCycle records the duration of one sync loop tick.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
}

// ObserveGroupRead records a group read outcome.
func (m *Metrics) ObserveGroupRead(group, status string) {
	if m == nil {
		return
	}
	m.GroupReads.WithLabelValues(group, status).Inc()
}

// ObserveSiteState records the last effective state published for a site.
func (m *Metrics) ObserveSiteState(site string, filled bool) {
	if m == nil {
		return
	}
	v := 0.0
	if filled {
		v = 1.0
	}
	m.SiteState.WithLabelValues(site).Set(v)
}

// ObserveRDSWrite records a dispatch server write outcome.
func (m *Metrics) ObserveRDSWrite(status string) {
	if m == nil {
		return
	}
	m.RDSWrites.WithLabelValues(status).Inc()
}

// Serve starts an HTTP server exposing /metrics on addr. It runs until the
// listener fails or the process exits; callers typically invoke it in its
// own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	return srv.ListenAndServe()
}
