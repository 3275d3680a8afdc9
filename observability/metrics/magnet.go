package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MagnetMetrics struct {
	fundersRegistered prometheus.Counter
	magnetsMinted     prometheus.Counter
	deposits          prometheus.Counter
	withdrawals       *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
}

var (
	magnetOnce     sync.Once
	magnetRegistry *MagnetMetrics
)

func Magnet() *MagnetMetrics {
	magnetOnce.Do(func() {
		magnetRegistry = &MagnetMetrics{
			fundersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "magnet_funders_registered_total",
				Help: "Count of funder registrations.",
			}),
			magnetsMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "magnet_minted_total",
				Help: "Count of vesting magnets minted.",
			}),
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "magnet_deposits_total",
				Help: "Count of completed escrow deposits.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "magnet_withdrawals_total",
				Help: "Count of completed withdrawals by caller role.",
			}, []string{"role"}),
			operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "magnet_operation_failures_total",
				Help: "Count of rejected operations by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			magnetRegistry.fundersRegistered,
			magnetRegistry.magnetsMinted,
			magnetRegistry.deposits,
			magnetRegistry.withdrawals,
			magnetRegistry.operationFailures,
		)
	})
	return magnetRegistry
}

func (m *MagnetMetrics) FunderRegistered() {
	if m == nil {
		return
	}
	m.fundersRegistered.Inc()
}

func (m *MagnetMetrics) MagnetMinted() {
	if m == nil {
		return
	}
	m.magnetsMinted.Inc()
}

func (m *MagnetMetrics) Deposited() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

// Withdrawn records a completed withdrawal for the given caller role
// ("funder" or "recipient").
func (m *MagnetMetrics) Withdrawn(role string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(role).Inc()
}

// OperationFailed records a rejected operation for the given RPC method.
func (m *MagnetMetrics) OperationFailed(method string) {
	if m == nil {
		return
	}
	m.operationFailures.WithLabelValues(method).Inc()
}
