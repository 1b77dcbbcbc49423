package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "expiringkv"

// Collector exposes a Registry to Prometheus.
//
// Metric names are only known once they are first touched, so the
// collector is unchecked: Describe sends nothing.
type Collector struct {
	registry *Registry
}

// NewCollector wraps a registry as a prometheus.Collector.
func NewCollector(r *Registry) *Collector {
	return &Collector{registry: r}
}

func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, value := range c.registry.Snapshot() {
		valueType := prometheus.GaugeValue
		if strings.HasSuffix(name, "_total") {
			valueType = prometheus.CounterValue
		}
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", name),
			"expiring-kv "+strings.ReplaceAll(name, "_", " "),
			nil, nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, valueType, float64(value))
	}
}

// NewPrometheusRegistry returns a prometheus registry holding the
// collector for r plus the Go runtime and process collectors.
func NewPrometheusRegistry(r *Registry) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(r),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
