package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SpinDuration tracks the latency of wheel spins
	SpinDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "spin_duration_seconds",
			Help: "Duration of wheel spin requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
			},
		},
		[]string{"status"}, // success, closed, duplicate or failure
	)

	// LoginTotal counts passwordless logins
	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_total",
			Help: "Passwordless login attempts by result",
		},
		[]string{"result"}, // created, returning, invalid, failure
	)

	// OfflineRequests counts how the offline cache policy answered requests
	OfflineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_requests_total",
			Help: "Requests handled by the offline cache policy",
		},
		[]string{"strategy", "source"}, // source: network, cache, shell, error
	)

	// MealPeriodClients tracks open live meal-period connections
	MealPeriodClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meal_period_ws_clients",
			Help: "Open WebSocket connections on the meal-period feed",
		},
	)
)

// RecordSpinDuration records the duration of a spin request
func RecordSpinDuration(status string, duration float64) {
	SpinDuration.WithLabelValues(status).Observe(duration)
}

// RecordLogin counts a login attempt
func RecordLogin(result string) {
	LoginTotal.WithLabelValues(result).Inc()
}

// RecordOffline counts an offline policy decision
func RecordOffline(strategy, source string) {
	OfflineRequests.WithLabelValues(strategy, source).Inc()
}
