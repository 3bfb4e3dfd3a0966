package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playcourt",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playcourt",
			Name:      "booking_transitions_total",
			Help:      "Booking state machine transitions by target status.",
		},
		[]string{"status"},
	)

	slotLockAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playcourt",
			Name:      "slot_lock_attempts_total",
			Help:      "Slot lock acquisition attempts by outcome.",
		},
		[]string{"outcome"},
	)

	walletTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playcourt",
			Name:      "wallet_transactions_total",
			Help:      "Ledger transactions by type.",
		},
		[]string{"type"},
	)

	sweepProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playcourt",
			Name:      "sweep_processed_total",
			Help:      "Records processed by background sweeps, by sweep name.",
		},
		[]string{"sweep"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingTransitions, slotLockAttempts, walletTransactions, sweepProcessed)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingTransition records a booking moving into the given status.
func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncSlotLock records a lock attempt outcome ("acquired" or "contended").
func IncSlotLock(outcome string) {
	slotLockAttempts.WithLabelValues(outcome).Inc()
}

// IncWalletTransaction records a ledger movement by type.
func IncWalletTransaction(txType string) {
	walletTransactions.WithLabelValues(txType).Inc()
}

// AddSweepProcessed records records handled by one sweep pass.
func AddSweepProcessed(sweep string, n int) {
	if n > 0 {
		sweepProcessed.WithLabelValues(sweep).Add(float64(n))
	}
}
