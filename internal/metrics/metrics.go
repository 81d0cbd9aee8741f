package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the paid registration flow. A nil *Metrics is a no-op.
type Metrics struct {
	CheckoutSessions   prometheus.Counter
	Confirmations      *prometheus.CounterVec
	ConfirmDuration    prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// Confirmation outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeReplayed   = "replayed"
	OutcomeDuplicate  = "duplicate"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckoutSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "contesthub_checkout_sessions_created_total",
			Help: "Checkout sessions created with the payment gateway",
		}),
		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_payment_confirmations_total",
			Help: "Payment confirmations by outcome",
		}, []string{"outcome"}),
		ConfirmDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contesthub_payment_confirm_duration_seconds",
			Help:    "Duration of ConfirmPayment including the gateway round trip",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contesthub_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) IncrementCheckoutCreated() {
	if m == nil {
		return
	}
	m.CheckoutSessions.Inc()
}

// ObserveConfirm records one ConfirmPayment outcome and its duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveConfirm(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
	m.ConfirmDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}
