package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PassMetrics records settlement activity for the pass engine.
type PassMetrics struct {
	Redemptions *prometheus.CounterVec
	Withdrawals *prometheus.CounterVec
	WeiCredited prometheus.Counter
	WeiReleased prometheus.Counter
}

var (
	passMetricsOnce sync.Once
	passRegistry    *PassMetrics
)

// Pass returns the lazily-initialised metrics registry used to record
// redemption and withdrawal outcomes.
func Pass() *PassMetrics {
	passMetricsOnce.Do(func() {
		passRegistry = &PassMetrics{
			Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eventpass",
				Subsystem: "engine",
				Name:      "redemptions_total",
				Help:      "Total redemption attempts segmented by tier and outcome.",
			}, []string{"tier", "outcome"}),
			Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "eventpass",
				Subsystem: "splitter",
				Name:      "withdrawals_total",
				Help:      "Total withdrawal attempts segmented by outcome.",
			}, []string{"outcome"}),
			WeiCredited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "eventpass",
				Subsystem: "splitter",
				Name:      "wei_credited_total",
				Help:      "Total wei credited to the payment splitter.",
			}),
			WeiReleased: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "eventpass",
				Subsystem: "splitter",
				Name:      "wei_released_total",
				Help:      "Total wei released to payees.",
			}),
		}
		prometheus.MustRegister(
			passRegistry.Redemptions,
			passRegistry.Withdrawals,
			passRegistry.WeiCredited,
			passRegistry.WeiReleased,
		)
	})
	return passRegistry
}

// Outcome labels used by the counters above.
const (
	OutcomeSettled  = "settled"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
