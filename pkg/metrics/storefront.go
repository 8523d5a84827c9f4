package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Storefront records the state layer's counters. A nil *Storefront is a valid no-op.
type Storefront struct {
	published  *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	ledger     *prometheus.CounterVec
	checkout   *prometheus.CounterVec
	remote     *prometheus.HistogramVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_published_total",
		Help: "Events delivered by the change broadcaster.",
	}, []string{"topic"})
	suppressed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_suppressed_total",
		Help: "Re-entrant publishes dropped while the same topic was being delivered.",
	}, []string{"topic"})
	ledger := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "LuckCoins ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout confirmations by payment method and outcome.",
	}, []string{"method", "outcome"})
	remote := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_call_duration_seconds",
		Help:    "Latency of calls to the remote auth/document backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	reg.MustRegister(published, suppressed, ledger, checkout, remote)
	return &Storefront{
		published:  published,
		suppressed: suppressed,
		ledger:     ledger,
		checkout:   checkout,
		remote:     remote,
	}
}

func (s *Storefront) IncPublished(topic string) {
	if s == nil || s.published == nil {
		return
	}
	s.published.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (s *Storefront) IncSuppressed(topic string) {
	if s == nil || s.suppressed == nil {
		return
	}
	s.suppressed.WithLabelValues(normalizeLabel(topic)).Inc()
}

// IncLedger counts a grant or deduct attempt.
func (s *Storefront) IncLedger(operation, outcome string) {
	if s == nil || s.ledger == nil {
		return
	}
	s.ledger.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (s *Storefront) IncCheckout(method, outcome string) {
	if s == nil || s.checkout == nil {
		return
	}
	s.checkout.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// ObserveRemote records the latency of a remote backend call.
func (s *Storefront) ObserveRemote(operation string, err error, duration time.Duration) {
	if s == nil || s.remote == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	s.remote.WithLabelValues(normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
