package metrics

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	vaulterrors "yzyvault/core/errors"
)

// LedgerSnapshot carries the vault totals exported as gauges.
type LedgerSnapshot struct {
	Epoch          uint64
	TotalStaked    *big.Int
	TotalDeposited *big.Int
	TotalPaid      *big.Int
	TotalDevPaid   *big.Int
	Undistributed  *big.Int
}

type VaultMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	epoch         prometheus.Gauge
	totalStaked   prometheus.Gauge
	deposited     prometheus.Gauge
	paid          prometheus.Gauge
	devPaid       prometheus.Gauge
	undistributed prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily registered vault metrics.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Count of vault operations by operation and outcome code.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency of vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			epoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "epoch",
				Help:      "Most recently rolled epoch.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "total_staked",
				Help:      "Stakeable tokens held in vault custody.",
			}),
			deposited: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "fees_deposited",
				Help:      "Lifetime fee income credited to epochs.",
			}),
			paid: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "rewards_paid",
				Help:      "Lifetime rewards paid to stakers net of the dev fee.",
			}),
			devPaid: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "dev_fee_paid",
				Help:      "Lifetime dev fee paid to the dev fee receiver.",
			}),
			undistributed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "yzy",
				Subsystem: "vault",
				Name:      "undistributed",
				Help:      "Fee income still held by the vault, including rounding dust.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.latency,
			vaultRegistry.epoch,
			vaultRegistry.totalStaked,
			vaultRegistry.deposited,
			vaultRegistry.paid,
			vaultRegistry.devPaid,
			vaultRegistry.undistributed,
		)
	})
	return vaultRegistry
}

// ObserveOperation records one vault operation. Rejections are labelled with
// their error code.
func (m *VaultMetrics) ObserveOperation(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = vaulterrors.Code(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordLedger publishes the vault totals.
func (m *VaultMetrics) RecordLedger(snapshot LedgerSnapshot) {
	if m == nil {
		return
	}
	m.epoch.Set(float64(snapshot.Epoch))
	m.totalStaked.Set(bigToFloat(snapshot.TotalStaked))
	m.deposited.Set(bigToFloat(snapshot.TotalDeposited))
	m.paid.Set(bigToFloat(snapshot.TotalPaid))
	m.devPaid.Set(bigToFloat(snapshot.TotalDevPaid))
	m.undistributed.Set(bigToFloat(snapshot.Undistributed))
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
