package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts dispatched (non-thunk) actions by type.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marginalia_store_dispatch_total",
		Help: "Actions dispatched to the sidebar store by action type",
	}, []string{"action"})

	// DispatchErrors counts dispatches rejected by a reducer.
	DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marginalia_store_dispatch_errors_total",
		Help: "Dispatches that failed in a reducer by action type",
	}, []string{"action"})

	// RealtimeMessages counts messages read from the real-time socket.
	RealtimeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marginalia_realtime_messages_total",
		Help: "Real-time messages received by message type",
	}, []string{"type"})

	// RelayNotifications counts annotation notifications sent by the relay.
	RelayNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marginalia_relay_notifications_total",
		Help: "Annotation notifications broadcast by the relay by action",
	}, []string{"action"})

	// RelayClients tracks connected relay websocket clients.
	RelayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marginalia_relay_clients",
		Help: "Websocket clients currently connected to the relay",
	})
)
