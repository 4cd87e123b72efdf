package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one trilateration run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	samples      prometheus.Counter
	fixes        prometheus.Counter
	unresolvable *prometheus.CounterVec
	separation   prometheus.Gauge
	published    prometheus.Counter
	publishErrs  prometheus.Counter
}

// New registers the run metrics on a fresh registry. constLabels are attached
// to every series (typically the run id).
func New(constLabels prometheus.Labels) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bvstrack",
			Name:        "samples_total",
			Help:        "Range samples fed to the trilaterator.",
			ConstLabels: constLabels,
		}),
		fixes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bvstrack",
			Name:        "fixes_total",
			Help:        "Samples that produced a position fix.",
			ConstLabels: constLabels,
		}),
		unresolvable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "bvstrack",
			Name:        "unresolvable_total",
			Help:        "Samples dropped because the range circles do not intersect.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		separation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "bvstrack",
			Name:        "anchor_separation_meters",
			Help:        "Great-circle distance between the two anchors.",
			ConstLabels: constLabels,
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bvstrack",
			Name:        "mqtt_published_total",
			Help:        "Fixes published to the MQTT broker.",
			ConstLabels: constLabels,
		}),
		publishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "bvstrack",
			Name:        "mqtt_publish_errors_total",
			Help:        "Fixes the MQTT broker did not acknowledge.",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(m.samples, m.fixes, m.unresolvable, m.separation, m.published, m.publishErrs)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveSample() {
	if m == nil {
		return
	}
	m.samples.Inc()
}

func (m *Metrics) ObserveFix() {
	if m == nil {
		return
	}
	m.fixes.Inc()
}

func (m *Metrics) ObserveUnresolvable(reason string) {
	if m == nil {
		return
	}
	m.unresolvable.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSeparation(meters float64) {
	if m == nil {
		return
	}
	m.separation.Set(meters)
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrs.Inc()
		return
	}
	m.published.Inc()
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
