package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tapsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapwar_taps_consumed_total",
		Help: "Tap events applied to the state store.",
	})
	tapsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapwar_taps_skipped_total",
		Help: "Tap events discarded as malformed.",
	})
)
