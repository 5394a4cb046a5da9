package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketConnections is the gauge of open push-subscription sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workit_websocket_connections",
		Help: "Number of open WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workit_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// RealtimeEventsTotal counts published push events by type.
	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workit_realtime_events_total",
		Help: "Total push events published by type",
	}, []string{"event_type"})

	// OnlineUsers tracks how many users the presence tracker considers online.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workit_online_users",
		Help: "Number of users currently online",
	})

	// PresenceExpired counts users marked offline by the presence reaper.
	PresenceExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workit_presence_expired_total",
		Help: "Users marked offline after their heartbeat lapsed",
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workit_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ExportRenderDuration records export render latency by artifact kind.
	ExportRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workit_export_render_seconds",
		Help:    "Export render latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind", "outcome"})
)

// ObserveRender records how long an export of kind took.
func ObserveRender(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExportRenderDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
}
