package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConsoleMetrics exposes counters/histograms for backend calls, appointment
// mutations and reminder batches.
type ConsoleMetrics struct {
	backendTotal   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	mutationsTotal *prometheus.CounterVec
	remindersTotal *prometheus.CounterVec
}

func NewConsoleMetrics(reg prometheus.Registerer) *ConsoleMetrics {
	m := &ConsoleMetrics{
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total clinic backend REST calls",
		}, []string{"operation", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "backend",
			Name:      "request_latency_seconds",
			Help:      "Latency of clinic backend REST calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "mutations_total",
			Help:      "Schedule/reschedule/cancel attempts by outcome",
		}, []string{"operation", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "messages_total",
			Help:      "Reminder messages reported by the backend, by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.backendTotal, m.backendLatency, m.mutationsTotal, m.remindersTotal)
	return m
}

func (m *ConsoleMetrics) ObserveBackendCall(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.backendTotal.WithLabelValues(operation, outcome).Inc()
	m.backendLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *ConsoleMetrics) ObserveMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveReminderBatch records the backend's sent/failed counts verbatim.
func (m *ConsoleMetrics) ObserveReminderBatch(sent, failed int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.remindersTotal.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		m.remindersTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
