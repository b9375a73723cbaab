// Package metrics exposes sync counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// Metrics owns a private registry so that several servers (and tests) can
// live in one process.
type Metrics struct {
	registry *prometheus.Registry

	PushedRows       *prometheus.CounterVec
	PulledRows       *prometheus.CounterVec
	TombstonesServed prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PushedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_pushed_rows_total",
			Help: "Rows received on push endpoints by table and outcome",
		}, []string{"table", "status"}),
		PulledRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_pulled_rows_total",
			Help: "Rows served on pull endpoints by table",
		}, []string{"table"}),
		TombstonesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsync_tombstones_served_total",
			Help: "Tombstones served to devices",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldsync_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(m.PushedRows, m.PulledRows, m.TombstonesServed, m.RequestDuration)
	return m
}

// Pushed counts one push outcome.
func (m *Metrics) Pushed(table entity.Table, status entity.PushStatus) {
	m.PushedRows.WithLabelValues(string(table), string(status)).Inc()
}

// Pulled counts rows served for table.
func (m *Metrics) Pulled(table entity.Table, n int) {
	m.PulledRows.WithLabelValues(string(table)).Add(float64(n))
}

// Tombstones counts tombstones served.
func (m *Metrics) Tombstones(n int) {
	m.TombstonesServed.Add(float64(n))
}

// Observe records the latency of one request.
func (m *Metrics) Observe(route string, code int, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
