package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TokenMetrics struct {
	mints            prometheus.Counter
	burns            prometheus.Counter
	transfers        prometheus.Counter
	interestRealized prometheus.Counter
	bridgeSent       *prometheus.CounterVec
	bridgeReceived   *prometheus.CounterVec
	bridgeDuplicates *prometheus.CounterVec
	bridgeRollbacks  prometheus.Counter
	globalRate       prometheus.Gauge
}

var (
	tokenOnce     sync.Once
	tokenRegistry *TokenMetrics
)

func Token() *TokenMetrics {
	tokenOnce.Do(func() {
		tokenRegistry = &TokenMetrics{
			mints: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rbt_mints_total",
				Help: "Count of mint operations, including bridge receipts.",
			}),
			burns: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rbt_burns_total",
				Help: "Count of burn operations, including bridge sends.",
			}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rbt_transfers_total",
				Help: "Count of local holder-to-holder transfers.",
			}),
			interestRealized: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rbt_interest_realized_total",
				Help: "Count of interest realization folds into principal.",
			}),
			bridgeSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rbt_bridge_sent_total",
				Help: "Count of outbound bridge messages by destination domain.",
			}, []string{"destination"}),
			bridgeReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rbt_bridge_received_total",
				Help: "Count of applied inbound bridge messages by origin domain.",
			}, []string{"origin"}),
			bridgeDuplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rbt_bridge_duplicates_total",
				Help: "Count of inbound messages skipped as already processed.",
			}, []string{"origin"}),
			bridgeRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rbt_bridge_rollbacks_total",
				Help: "Count of outbound sends reversed after transport refusal.",
			}),
			globalRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rbt_global_interest_rate",
				Help: "Current global interest rate in wad units per second.",
			}),
		}
		prometheus.MustRegister(
			tokenRegistry.mints,
			tokenRegistry.burns,
			tokenRegistry.transfers,
			tokenRegistry.interestRealized,
			tokenRegistry.bridgeSent,
			tokenRegistry.bridgeReceived,
			tokenRegistry.bridgeDuplicates,
			tokenRegistry.bridgeRollbacks,
			tokenRegistry.globalRate,
		)
	})
	return tokenRegistry
}

func (m *TokenMetrics) ObserveMint() {
	if m == nil {
		return
	}
	m.mints.Inc()
}

func (m *TokenMetrics) ObserveBurn() {
	if m == nil {
		return
	}
	m.burns.Inc()
}

func (m *TokenMetrics) ObserveTransfer() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}

func (m *TokenMetrics) ObserveInterestRealized() {
	if m == nil {
		return
	}
	m.interestRealized.Inc()
}

func (m *TokenMetrics) ObserveBridgeSent(destination uint64) {
	if m == nil {
		return
	}
	m.bridgeSent.WithLabelValues(fmt.Sprintf("%d", destination)).Inc()
}

func (m *TokenMetrics) ObserveBridgeReceived(origin uint64) {
	if m == nil {
		return
	}
	m.bridgeReceived.WithLabelValues(fmt.Sprintf("%d", origin)).Inc()
}

func (m *TokenMetrics) ObserveBridgeDuplicate(origin uint64) {
	if m == nil {
		return
	}
	m.bridgeDuplicates.WithLabelValues(fmt.Sprintf("%d", origin)).Inc()
}

func (m *TokenMetrics) ObserveBridgeRollback() {
	if m == nil {
		return
	}
	m.bridgeRollbacks.Inc()
}

func (m *TokenMetrics) SetGlobalRate(rate float64) {
	if m == nil {
		return
	}
	m.globalRate.Set(rate)
}
