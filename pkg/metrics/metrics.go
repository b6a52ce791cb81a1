// Package metrics — Prometheus instrumentasyonu.
//
// Realtime core'un operasyonel görünürlüğü için üç temel metrik toplanır:
// aktif WebSocket bağlantı sayısı, inbound event sayacı (op bazlı) ve
// fan-out ile yazılan frame sayacı. /metrics endpoint'i promhttp ile sunulur.
//
// Neden ayrı paket? ws ve handlers katmanları aynı sayaçları artırır;
// paylaşılan leaf dependency olarak burada yaşar.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections, o an açık WebSocket bağlantı sayısı.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nexus",
		Name:      "ws_active_connections",
		Help:      "Number of currently open WebSocket connections.",
	})

	// InboundEvents, op bazında işlenen inbound event sayısı.
	InboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Name:      "ws_inbound_events_total",
		Help:      "Total inbound WebSocket events processed, by op.",
	}, []string{"op"})

	// FanoutFrames, room registry üzerinden socket'lere yazılan frame sayısı.
	FanoutFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nexus",
		Name:      "ws_fanout_frames_total",
		Help:      "Total frames delivered to sockets via room fan-out.",
	})

	// DroppedClients, outbound queue'su dolduğu için kapatılan client sayısı.
	DroppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nexus",
		Name:      "ws_dropped_clients_total",
		Help:      "Total clients disconnected because their send buffer was full.",
	})

	// WebhookRequests, webhook ingest isteklerinin sonuç bazlı sayısı.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Name:      "webhook_requests_total",
		Help:      "Total webhook ingest requests, by outcome.",
	}, []string{"outcome"})
)

// Handler, /metrics endpoint'i için HTTP handler döner.
func Handler() http.Handler {
	return promhttp.Handler()
}
