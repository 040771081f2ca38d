package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

var eventsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "overlay_events",
	Help: "Stored donation events by status",
}, []string{"status"})

// StatsJob 定期把各状态事件数量写入 overlay_events 指标
type StatsJob struct {
	source   StatsSource
	interval time.Duration
	log      *utils.Logger
}

func NewStatsJob(source StatsSource, every time.Duration, log *utils.Logger) *StatsJob {
	return &StatsJob{source: source, interval: interval(every, 30*time.Second), log: log.OrDefault()}
}

func (j *StatsJob) Name() string { return "event_stats" }

func (j *StatsJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *StatsJob) Execute(ctx context.Context) {
	stats, err := j.source.Stats(ctx)
	if err != nil {
		j.log.Warn("统计事件数量失败: %v", err)
		return
	}
	for status, n := range stats {
		eventsGauge.WithLabelValues(string(status)).Set(float64(n))
	}
}

// KeepaliveJob 定期向 overlay 推送 ping，及时清理已断开的连接
type KeepaliveJob struct {
	pub      Publisher
	interval time.Duration
}

func NewKeepaliveJob(pub Publisher, every time.Duration) *KeepaliveJob {
	return &KeepaliveJob{pub: pub, interval: interval(every, 25*time.Second)}
}

func (j *KeepaliveJob) Name() string { return "overlay_keepalive" }

func (j *KeepaliveJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *KeepaliveJob) Execute(ctx context.Context) {
	j.pub.Publish(hub.Overlay, models.TypeMessage{Type: models.MsgPing})
}
