package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reserveAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "reserve_attempts_total",
			Help:      "Count of conflict guard reserve attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "booking_transitions_total",
			Help:      "Count of booking state transitions by target status.",
		},
		[]string{"status"},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "holds_expired_total",
			Help:      "Count of holds reclaimed by the expiry sweep.",
		},
	)

	waitlistFulfilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "waitlist_fulfilled_total",
			Help:      "Count of waitlist entries fulfilled by released capacity.",
		},
	)

	idempotencyReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "idempotency_replays_total",
			Help:      "Count of booking-creation requests answered from stored results.",
		},
	)
)

// Register registers the engine metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reserveAttempts,
			bookingTransitions,
			holdsExpired,
			waitlistFulfilled,
			idempotencyReplays,
		)
	})
}

func IncReserveAttempt(outcome string) {
	reserveAttempts.WithLabelValues(outcome).Inc()
}

func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncHoldsExpired(n int) {
	holdsExpired.Add(float64(n))
}

func IncWaitlistFulfilled() {
	waitlistFulfilled.Inc()
}

func IncIdempotencyReplay() {
	idempotencyReplays.Inc()
}
