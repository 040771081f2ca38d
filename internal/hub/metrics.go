package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var subscribersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "overlay_hub_subscribers",
	Help: "Number of live subscribers per channel",
}, []string{"channel"})

var messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "overlay_hub_messages_sent_total",
	Help: "Messages delivered to subscribers",
}, []string{"channel"})

var sendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "overlay_hub_send_failures_total",
	Help: "Failed sends that caused a subscriber to be dropped",
}, []string{"channel"})
