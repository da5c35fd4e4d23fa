// Package metrics holds the prometheus collectors of the application tier.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time" // Time durations

	"github.com/prometheus/client_golang/prometheus" // Prometheus client
	"github.com/shopspring/decimal"                  // Exact decimal arithmetic
)

type Metrics struct {
	transfers   *prometheus.CounterVec
	fees        prometheus.Counter
	logins      *prometheus.CounterVec
	ledgerCalls *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_transfers_total",
				Help: "Transfer submissions by outcome (completed or the error kind)",
			},
			[]string{"outcome"},
		),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bank_fees_collected_total",
			Help: "Fees retained by completed transfers, in currency units",
		}),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		ledgerCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_ledger_call_duration_seconds",
				Help:    "Duration of calls from the application tier to the ledger",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.transfers, m.fees, m.logins, m.ledgerCalls)
	return m
}

// RegisterActiveSessions exposes count as the bank_active_sessions gauge
func RegisterActiveSessions(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "bank_active_sessions",
			Help: "Sessions currently held by the session manager",
		},
		func() float64 { return float64(count()) },
	))
}

// TransferCompleted counts a completed transfer and its fee
func (m *Metrics) TransferCompleted(fee decimal.Decimal) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues("completed").Inc()
	m.fees.Add(fee.InexactFloat64())
}

// TransferRejected counts a transfer that ended with the given error kind
func (m *Metrics) TransferRejected(kind string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(kind).Inc()
}

// Login counts a login attempt
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

// ObserveLedgerCall records how long a ledger operation took
func (m *Metrics) ObserveLedgerCall(op string, started time.Time) {
	if m == nil {
		return
	}
	m.ledgerCalls.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
