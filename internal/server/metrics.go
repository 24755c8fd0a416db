package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tapwar/internal/wshub"
)

func registerHubMetrics(hub *wshub.Hub) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tapwar_connections_active",
		Help: "Number of websocket connections currently registered.",
	}, func() float64 {
		return float64(hub.Count())
	})
}
