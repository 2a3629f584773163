package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the presence and connection metrics hooks.
type PrometheusCollector struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter

	joinsTotal  *prometheus.CounterVec
	leavesTotal *prometheus.CounterVec

	chatMessagesTotal   prometheus.Counter
	chatRecipientsTotal prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_connections_active",
			Help: "Number of live signaling connections",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "huddle_connections_total",
			Help: "Total number of signaling connections accepted",
		}),

		joinsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_joins_total",
			Help: "Room joins, partitioned by whether the join notification was suppressed as a duplicate presence",
		}, []string{"duplicate"}),

		leavesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_leaves_total",
			Help: "Room leaves, partitioned by whether the leave notification was suppressed",
		}, []string{"suppressed"}),

		chatMessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "huddle_chat_messages_total",
			Help: "Total chat messages relayed",
		}),

		chatRecipientsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "huddle_chat_recipients_total",
			Help: "Total chat message deliveries to recipients",
		}),
	}
}

// RegisterRoomGauge exposes the room directory size as a gauge sampled on
// scrape.
func (c *PrometheusCollector) RegisterRoomGauge(fn func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "huddle_rooms_active",
		Help: "Number of rooms in the directory",
	}, fn)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// ports.PresenceMetrics implementation.

func (c *PrometheusCollector) ConnectionJoined(duplicate bool) {
	c.joinsTotal.WithLabelValues(boolLabel(duplicate)).Inc()
}

func (c *PrometheusCollector) ConnectionLeft(suppressed bool) {
	c.leavesTotal.WithLabelValues(boolLabel(suppressed)).Inc()
}

func (c *PrometheusCollector) ChatMessageRelayed(recipients int) {
	c.chatMessagesTotal.Inc()
	c.chatRecipientsTotal.Add(float64(recipients))
}

// signal.ConnectionMetrics implementation.

func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}
