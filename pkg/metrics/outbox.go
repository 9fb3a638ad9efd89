package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records the publisher's batch timings and per-event results.
type OutboxMetrics struct {
	batchDuration prometheus.Histogram
	published     *prometheus.CounterVec
	failed        *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events delivered to the stream.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox events that failed to publish.",
	}, []string{"event_type"})
	reg.MustRegister(batchDuration, published, failed)
	return &OutboxMetrics{
		batchDuration: batchDuration,
		published:     published,
		failed:        failed,
	}
}

func (o *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if o == nil || o.batchDuration == nil {
		return
	}
	o.batchDuration.Observe(duration.Seconds())
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
