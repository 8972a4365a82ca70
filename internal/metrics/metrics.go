package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "booking"

// Metrics holds the engine's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	BookingAttempts     *prometheus.CounterVec
	BookingLatency      prometheus.Histogram
	SlotQueries         *prometheus.CounterVec
	SlotQueryLatency    prometheus.Histogram
	LockAcquireFailures prometheus.Counter
	BlockOutcomes       *prometheus.CounterVec
	AppointmentsExpired prometheus.Counter
	CatalogCacheHits    *prometheus.CounterVec

	OutboxEventsPublished prometheus.Counter
	OutboxEventsFailed    prometheus.Counter
	OutboxBatchLatency    prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Booking attempts partitioned by outcome",
		}, []string{"outcome"}),
		BookingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Time spent admitting a booking, lock wait included",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		SlotQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Slot listing requests partitioned by outcome",
		}, []string{"outcome"}),
		SlotQueryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_query_duration_seconds",
			Help:      "Time spent computing slots for one day",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		LockAcquireFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_lock_failures_total",
			Help:      "Slot locks that could not be acquired within the retry budget",
		}),
		BlockOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_operations_total",
			Help:      "Block create, confirm and abort outcomes",
		}, []string{"outcome"}),
		AppointmentsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_expired_total",
			Help:      "Pending appointments released after their payment hold ran out",
		}),
		CatalogCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups partitioned by result",
		}, []string{"result"}),
		OutboxEventsPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_published_total",
			Help:      "Outbox events delivered to the broker",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Outbox events that failed delivery",
		}),
		OutboxBatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time spent relaying one outbox batch",
		}),
	}
}

func (m *Metrics) ObserveBooking(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(outcome).Inc()
	m.BookingLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveSlotQuery(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.SlotQueries.WithLabelValues(outcome).Inc()
	m.SlotQueryLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) LockFailed() {
	if m == nil {
		return
	}
	m.LockAcquireFailures.Inc()
}

func (m *Metrics) BlockOutcome(outcome string) {
	if m == nil {
		return
	}
	m.BlockOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Expired(n int) {
	if m == nil {
		return
	}
	m.AppointmentsExpired.Add(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CatalogCacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) OutboxBatch(published, failed int, started time.Time) {
	if m == nil {
		return
	}
	m.OutboxEventsPublished.Add(float64(published))
	m.OutboxEventsFailed.Add(float64(failed))
	m.OutboxBatchLatency.Observe(time.Since(started).Seconds())
}
