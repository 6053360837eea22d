// Package metrics keeps a private Prometheus registry behind a small
// name+labels API. Collectors are created lazily on first use; the label keys
// seen on that first call fix the label set of the metric.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

type vec[T any] struct {
	v    T
	keys []string
}

type registry struct {
	reg       *prometheus.Registry
	counters  map[string]vec[*prometheus.CounterVec]
	gauges    map[string]vec[*prometheus.GaugeVec]
	summaries map[string]vec[*prometheus.SummaryVec]
}

var (
	mu  sync.Mutex
	cur = newRegistry()
)

func newRegistry() *registry {
	return &registry{
		reg:       prometheus.NewRegistry(),
		counters:  map[string]vec[*prometheus.CounterVec]{},
		gauges:    map[string]vec[*prometheus.GaugeVec]{},
		summaries: map[string]vec[*prometheus.SummaryVec]{},
	}
}

// Reset drops every collector. Tests call it to start from a clean registry.
func Reset() {
	mu.Lock()
	cur = newRegistry()
	mu.Unlock()
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func values(keys []string, labels map[string]string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = labels[k]
	}
	return out
}

// Inc adds one to the counter name{labels}.
func Inc(name string, labels map[string]string) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := cur.counters[name]
	if !ok {
		c.keys = labelKeys(labels)
		c.v = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, c.keys)
		cur.reg.MustRegister(c.v)
		cur.counters[name] = c
	}
	c.v.WithLabelValues(values(c.keys, labels)...).Inc()
}

// AddGauge adds delta (possibly negative) to the gauge name{labels}.
func AddGauge(name string, labels map[string]string, delta float64) {
	gauge(name, labels).Add(delta)
}

// SetGauge sets the gauge name{labels} to v.
func SetGauge(name string, labels map[string]string, v float64) {
	gauge(name, labels).Set(v)
}

func gauge(name string, labels map[string]string) prometheus.Gauge {
	mu.Lock()
	defer mu.Unlock()
	g, ok := cur.gauges[name]
	if !ok {
		g.keys = labelKeys(labels)
		g.v = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, g.keys)
		cur.reg.MustRegister(g.v)
		cur.gauges[name] = g
	}
	return g.v.WithLabelValues(values(g.keys, labels)...)
}

// ObserveSummary records v in the summary name{labels}.
func ObserveSummary(name string, labels map[string]string, v float64) {
	mu.Lock()
	defer mu.Unlock()
	s, ok := cur.summaries[name]
	if !ok {
		s.keys = labelKeys(labels)
		s.v = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       name,
			Help:       name,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, s.keys)
		cur.reg.MustRegister(s.v)
		cur.summaries[name] = s
	}
	s.v.WithLabelValues(values(s.keys, labels)...).Observe(v)
}

// DumpProm renders the registry in the Prometheus text exposition format.
func DumpProm() string {
	mu.Lock()
	reg := cur.reg
	mu.Unlock()
	mfs, err := reg.Gather()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
			return sb.String()
		}
	}
	return sb.String()
}

// Handler serves the registry current at request time.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reg := cur.reg
		mu.Unlock()
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
