package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// AppointmentMetrics counts appointment lifecycle activity.
type AppointmentMetrics struct {
	transitions     *prometheus.CounterVec
	tokensAllocated *prometheus.CounterVec
	feedFailures    prometheus.Counter
}

// NewAppointmentMetrics registers the appointment counters. A nil registerer means the default one.
func NewAppointmentMetrics(reg prometheus.Registerer) *AppointmentMetrics {
	m := &AppointmentMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment transitions by action and outcome",
		}, []string{"action", "outcome"}),
		tokensAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "tokens_allocated_total",
			Help:      "Offline tokens allocated, by the operation that requested them",
		}, []string{"action"}),
		feedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "feed_publish_failures_total",
			Help:      "Change feed events that could not be published",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.tokensAllocated, m.feedFailures)
	return m
}

func (m *AppointmentMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *AppointmentMetrics) ObserveTokenAllocated(action string) {
	if m == nil {
		return
	}
	m.tokensAllocated.WithLabelValues(action).Inc()
}

func (m *AppointmentMetrics) ObserveFeedFailure() {
	if m == nil {
		return
	}
	m.feedFailures.Inc()
}
