package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for the booking flows and the slots cache.
type Metrics struct {
	cacheEvents   *prometheus.CounterVec
	bookings      *prometheus.CounterVec
	cancellations *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Slots cache events by type (hit, miss, set, invalidate, failure)",
		}, []string{"event"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medagenda",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cacheEvents, m.bookings, m.cancellations)
	return m
}

func (m *Metrics) ObserveCacheEvent(event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}
