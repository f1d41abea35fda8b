// Package metrics exposes Prometheus collectors for the order workflows.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of handled updates labeled by action and status",
		},
		[]string{"action", "status"},
	)
	handlerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handler_duration_seconds",
			Help:    "Duration of update handlers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	intakeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_transitions_total",
			Help: "Total number of intake step transitions",
		},
		[]string{"from", "to"},
	)
	orderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)
	claimConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_conflicts_total",
			Help: "Number of claim attempts rejected because another executor won the race",
		},
	)
	broadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast fan-out deliveries by outcome",
		},
		[]string{"outcome"},
	)
	ordersByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orders_by_status",
			Help: "Number of orders per lifecycle status",
		},
		[]string{"status"},
	)
)

// RecordUpdate counts one handled update.
func RecordUpdate(action, status string) {
	updatesTotal.WithLabelValues(action, status).Inc()
}

// ObserveHandlerDuration records handler latency.
func ObserveHandlerDuration(action string, d time.Duration) {
	handlerDurationSeconds.WithLabelValues(action).Observe(d.Seconds())
}

// RecordIntakeTransition counts one intake step transition.
func RecordIntakeTransition(from, to string) {
	intakeTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordOrderTransition counts one order status transition.
func RecordOrderTransition(from, to domain.OrderStatus) {
	orderTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// RecordClaimConflict counts a lost claim race.
func RecordClaimConflict() {
	claimConflictsTotal.Inc()
}

// RecordBroadcastDelivery counts one fan-out delivery attempt.
func RecordBroadcastDelivery(ok bool) {
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	broadcastDeliveriesTotal.WithLabelValues(outcome).Inc()
}

var trackedStatuses = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusAwaitingDeclineReason,
	domain.StatusDeclined,
	domain.StatusAwaitingPayment,
	domain.StatusPaymentReview,
	domain.StatusInProgress,
	domain.StatusCompleted,
}

// StatusCounter supplies the current count-by-status aggregate.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error)
}

// Collector periodically refreshes the orders_by_status gauge.
type Collector struct {
	counter  StatusCounter
	log      *slog.Logger
	interval time.Duration
}

// NewCollector builds a Collector polling counter at the given interval.
func NewCollector(counter StatusCounter, log *slog.Logger, interval time.Duration) *Collector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Collector{
		counter:  counter,
		log:      log,
		interval: interval,
	}
}

// Run refreshes gauges until ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	if c.counter == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Collector) refresh(ctx context.Context) {
	counts, err := c.counter.CountByStatus(ctx)
	if err != nil {
		c.log.Error("failed to refresh order status gauge", slog.Any("error", err))
		return
	}

	for _, status := range trackedStatuses {
		ordersByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
