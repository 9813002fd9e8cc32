package builder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics count what happened to the keys of one build. They are kept in a
// private registry and can be written to a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	keys           *prometheus.CounterVec
	skippedKeys    *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	records        prometheus.Gauge
}

// Reasons a key is left out of the trust list.
const (
	skipUnsupported = "unsupported_algorithm"
	skipDecodeError = "decode_error"
	skipDuplicate   = "duplicate_kid"
)

// NewMetrics creates and registers the build metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		keys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcc",
				Subsystem: "trustlist",
				Name:      "keys_total",
				Help:      "Keys extracted from an upstream source.",
			}, []string{"source", "algo"}),
		skippedKeys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcc",
				Subsystem: "trustlist",
				Name:      "skipped_keys_total",
				Help:      "Keys of an upstream source that were left out of the trust list.",
			}, []string{"source", "reason"}),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dcc",
				Subsystem: "trustlist",
				Name:      "source_failures_total",
				Help:      "Upstream sources that contributed no keys because of an error.",
			}, []string{"source", "kind"}),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dcc",
				Subsystem: "trustlist",
				Name:      "records",
				Help:      "Records in the last written trust list.",
			}),
	}
	m.registry.MustRegister(m.keys, m.skippedKeys, m.sourceFailures, m.records)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
