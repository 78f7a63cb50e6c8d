package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixpay_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tixpay_tickets_expired_total",
			Help: "Pending tickets moved to expired by the sweep",
		},
	)

	unitsRestored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixpay_inventory_restored_total",
			Help: "Inventory units returned to events",
		},
		[]string{"reason", "fare_class"},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixpay_job_runs_total",
			Help: "Scheduled job ticks by result",
		},
		[]string{"job", "result"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tixpay_job_duration_seconds",
			Help:    "Duration of job ticks that acquired the lock",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"job"},
	)

	payouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixpay_payouts_total",
			Help: "Payout settlement attempts by result",
		},
		[]string{"result"},
	)

	webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tixpay_webhook_notifications_total",
			Help: "Payment notifications by outcome",
		},
		[]string{"outcome"},
	)
)

func Reservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func TicketsExpired(n int) {
	ticketsExpired.Add(float64(n))
}

func UnitsRestored(reason, fare string, n int64) {
	if n <= 0 {
		return
	}
	unitsRestored.WithLabelValues(reason, fare).Add(float64(n))
}

// JobRun records one tick. result is "ok", "error" or "skipped"; skipped
// ticks never took the lock and carry no duration.
func JobRun(job, result string, d time.Duration) {
	jobRuns.WithLabelValues(job, result).Inc()
	if result != "skipped" {
		jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func Payout(result string) {
	payouts.WithLabelValues(result).Inc()
}

func Webhook(outcome string) {
	webhooks.WithLabelValues(outcome).Inc()
}
