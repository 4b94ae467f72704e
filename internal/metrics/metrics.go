package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_messages_persisted_total",
		Help: "Messages durably appended to a room.",
	})
	BroadcastsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_broadcasts_delivered_total",
		Help: "Messages pushed to local websocket connections.",
	})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketchat_publish_failures_total",
		Help: "Bridge publishes that failed after retries.",
	})
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketchat_ws_connections_open",
		Help: "Currently open websocket connections.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
