package stream

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeAbandoned = "abandoned"
)

// Metrics counts agent stream activity. All methods are no-ops on a nil
// receiver.
type Metrics struct {
	opened   prometheus.Counter
	finished *prometheus.CounterVec
	events   *prometheus.CounterVec
	bytes    prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		opened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_streams_opened_total",
				Help: "Total number of agent response streams opened",
			},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_streams_finished_total",
				Help: "Total number of agent response streams finished by outcome",
			},
			[]string{"outcome"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_stream_events_total",
				Help: "Total number of agent response events delivered by kind",
			},
			[]string{"kind"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_stream_bytes_total",
				Help: "Total number of NDJSON bytes written by the byte stream bridge",
			},
		),
	}

	registry.MustRegister(
		m.opened,
		m.finished,
		m.events,
		m.bytes,
	)

	return m
}

func (m *Metrics) IncrementOpened() {
	if m != nil && m.opened != nil {
		m.opened.Inc()
	}
}

func (m *Metrics) IncrementFinished(outcome string) {
	if m != nil && m.finished != nil {
		m.finished.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementEvents(kind string) {
	if m != nil && m.events != nil {
		m.events.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) AddBytes(n int) {
	if m != nil && m.bytes != nil {
		m.bytes.Add(float64(n))
	}
}
