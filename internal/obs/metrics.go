// Package obs exposes Prometheus metrics updated across the trading core:
//   - trader_events_published_total{topic}      events published on the bus
//   - trader_subscriber_errors_total{topic}     recovered subscriber panics
//   - trader_async_queue_drops_total{topic}     events dropped by full async queues
//   - trader_stream_reconnects_total{stream}    reconnect attempts per stream
//   - trader_stream_failures_total{stream}      streams that exhausted retries
//   - trader_parse_errors_total{stream}         malformed inbound messages
//   - trader_orders_total{side,status}          order lifecycle transitions
//   - trader_order_rejections_total{reason}     pre-trade risk rejections
//   - trader_positions_closed_total{reason}     exits by reason
//   - trader_equity                             current equity snapshot
//
// Registered in init() and served at /metrics by the status server.
package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_events_published_total",
			Help: "Events published on the bus",
		},
		[]string{"topic"},
	)

	SubscriberErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_subscriber_errors_total",
			Help: "Recovered subscriber panics",
		},
		[]string{"topic"},
	)

	AsyncQueueDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_async_queue_drops_total",
			Help: "Events dropped by full async subscriber queues",
		},
		[]string{"topic"},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_stream_reconnects_total",
			Help: "Reconnect attempts per stream",
		},
		[]string{"stream"},
	)

	StreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_stream_failures_total",
			Help: "Streams that exhausted their retry budget",
		},
		[]string{"stream"},
	)

	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_parse_errors_total",
			Help: "Malformed inbound stream messages",
		},
		[]string{"stream"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Order lifecycle transitions",
		},
		[]string{"side", "status"},
	)

	OrderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_order_rejections_total",
			Help: "Pre-trade risk rejections by reason",
		},
		[]string{"reason"},
	)

	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_positions_closed_total",
			Help: "Closed positions by exit reason",
		},
		[]string{"reason"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_equity",
			Help: "Current equity snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsPublished,
		SubscriberErrors,
		AsyncQueueDrops,
		StreamReconnects,
		StreamFailures,
		ParseErrors,
		Orders,
		OrderRejections,
		PositionsClosed,
		Equity,
	)
}
