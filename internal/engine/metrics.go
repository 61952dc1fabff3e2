package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	promisesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_promises_created_total",
			Help: "Total number of promises created, per environment.",
		},
		[]string{"environment"},
	)

	pendingPromises = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pledge_pending_promises",
			Help: "Number of promises currently pending, per environment.",
		},
		[]string{"environment"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_resolutions_total",
			Help: "Total number of terminal transitions, per environment and status.",
		},
		[]string{"environment", "status"},
	)

	callbacksExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_callbacks_executed_total",
			Help: "Total number of callback descriptors executed, per environment and outcome.",
		},
		[]string{"environment", "outcome"},
	)

	messagesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_messages_emitted_total",
			Help: "Total number of cross-chain messages emitted, per environment and kind.",
		},
		[]string{"environment", "kind"},
	)

	messagesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_messages_delivered_total",
			Help: "Total number of cross-chain messages accepted from the messenger, per environment and kind.",
		},
		[]string{"environment", "kind"},
	)
)

func init() {
	prometheus.MustRegister(promisesCreated)
	prometheus.MustRegister(pendingPromises)
	prometheus.MustRegister(resolutions)
	prometheus.MustRegister(callbacksExecuted)
	prometheus.MustRegister(messagesEmitted)
	prometheus.MustRegister(messagesDelivered)
}
