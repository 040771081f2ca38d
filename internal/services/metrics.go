package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "overlay_moderation_candidates_total",
	Help: "Donation candidates received, by result",
}, []string{"result"})

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "overlay_moderation_decisions_total",
	Help: "Moderation decisions, by outcome",
}, []string{"outcome"})

var autoModeGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "overlay_moderation_auto_mode",
	Help: "1 when auto-approve is enabled",
})
