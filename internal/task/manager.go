package task

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

// StatsSource 各状态事件数量
type StatsSource interface {
	Stats(ctx context.Context) (map[models.Status]int64, error)
}

// Publisher 向频道广播消息
type Publisher interface {
	Publish(ch hub.Channel, msg interface{})
}

// Job 定时任务
type Job interface {
	Name() string
	Definition() gocron.JobDefinition
	Execute(ctx context.Context)
}

const jobTimeout = 10 * time.Second

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
	log       *utils.Logger
}

func NewManager(log *utils.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}
	return &Manager{scheduler: s, log: log.OrDefault().Named("task")}, nil
}

// Register 注册任务。同一任务上一轮未结束时跳过本轮。
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.Definition(),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			job.Execute(ctx)
		}),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("注册任务 %s 失败: %w", job.Name(), err)
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// RegisterDefaults 注册事件统计和 overlay 保活两个任务
func (m *Manager) RegisterDefaults(cfg config.TaskConfig, stats StatsSource, pub Publisher) error {
	if err := m.Register(NewStatsJob(stats, cfg.StatsInterval, m.log)); err != nil {
		return err
	}
	return m.Register(NewKeepaliveJob(pub, cfg.KeepaliveInterval))
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.log.Info("任务管理器已启动，共 %d 个任务", len(m.jobs))
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.log.Error("关闭调度器失败: %v", err)
	}
	m.log.Info("任务管理器已停止")
}

func interval(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
