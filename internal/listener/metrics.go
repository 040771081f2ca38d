package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "overlay_listener_polls_total",
	Help: "Poll iterations by result",
}, []string{"result"})

var candidatesForwarded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "overlay_listener_candidates_forwarded_total",
	Help: "Donation candidates forwarded to moderation",
})
