package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/madjin/crypto-superchat/internal/db"
	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

var (
	ErrMissingEventID = fmt.Errorf("%w: event_id is required", ErrInvalidRequest)
	ErrInvalidAction  = fmt.Errorf("%w: invalid action", ErrInvalidRequest)
	ErrNegativeAmount = fmt.Errorf("%w: negative amount", ErrInvalidRequest)
)

// EventStore 审核流程依赖的事件存储操作
type EventStore interface {
	Create(ctx context.Context, p db.CreateParams) (*models.DonationEvent, bool, error)
	ListPending(ctx context.Context) ([]models.DonationEvent, error)
	Decide(ctx context.Context, id string, outcome models.Status) (*models.DonationEvent, error)
	ClearAll(ctx context.Context) (int64, error)
}

// Publisher 向频道广播消息
type Publisher interface {
	Publish(ch hub.Channel, msg interface{})
}

// ModerationService 打赏审核：入库、人工/自动审核、推送 overlay 和 dashboard
type ModerationService struct {
	store    EventStore
	pub      Publisher
	autoMode atomic.Bool
	inflight singleflight.Group
	log      *utils.Logger
}

func NewModerationService(store EventStore, pub Publisher, autoMode bool, log *utils.Logger) *ModerationService {
	m := &ModerationService{
		store: store,
		pub:   pub,
		log:   log.OrDefault().Named("moderation"),
	}
	m.autoMode.Store(autoMode)
	autoModeGauge.Set(boolGauge(autoMode))
	return m
}

// OnCandidate 处理监听器转发的打赏。
// 同一签名的并发调用合并为一次；签名已存在时直接返回已有记录，不再推送。
func (m *ModerationService) OnCandidate(ctx context.Context, c models.Candidate) (*models.DonationEvent, error) {
	if c.Signature == "" {
		return nil, ErrInvalidRequest
	}
	if c.Amount.IsNegative() {
		candidatesTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s (%s)", ErrNegativeAmount, c.Amount.String(), c.Signature)
	}
	v, err, _ := m.inflight.Do(c.Signature, func() (interface{}, error) {
		return m.ingest(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.DonationEvent), nil
}

func (m *ModerationService) ingest(ctx context.Context, c models.Candidate) (*models.DonationEvent, error) {
	ev, created, err := m.store.Create(ctx, db.CreateParams{
		Signature: c.Signature,
		Sender:    c.From,
		Amount:    c.Amount,
		Memo:      c.Memo,
		Tier:      models.TierForAmount(c.Amount),
	})
	if err != nil {
		return nil, fmt.Errorf("创建事件失败: %w", err)
	}
	if !created {
		candidatesTotal.WithLabelValues("duplicate").Inc()
		m.log.Debug("交易 %s 已处理过，跳过", c.Signature)
		return ev, nil
	}
	candidatesTotal.WithLabelValues("created").Inc()
	m.log.Info("新打赏 %s: %s from %s (%s)", ev.ID, ev.Amount.String(), utils.ShortAddress(ev.Sender), ev.Tier)

	m.pub.Publish(hub.Dashboard, models.EventMessage{Type: models.MsgNewEvent, Event: ev})

	if !m.AutoMode() {
		return ev, nil
	}
	if ev.AutoFiltered {
		m.log.Info("事件 %s 命中屏蔽词，保留人工审核", ev.ID)
		return ev, nil
	}
	approved, err := m.decide(ctx, ev.ID, models.StatusApproved)
	if err != nil {
		// 已经入库，自动通过失败不影响监听器
		m.log.Warn("自动通过 %s 失败: %v", ev.ID, err)
		return ev, nil
	}
	return approved, nil
}

// Approve 人工通过
func (m *ModerationService) Approve(ctx context.Context, id string) (*models.DonationEvent, error) {
	return m.decide(ctx, id, models.StatusApproved)
}

// Skip 人工跳过
func (m *ModerationService) Skip(ctx context.Context, id string) (*models.DonationEvent, error) {
	return m.decide(ctx, id, models.StatusSkipped)
}

// Decide 按 action 字符串执行审核，action 只能是 approve 或 skip
func (m *ModerationService) Decide(ctx context.Context, id, action string) (*models.DonationEvent, error) {
	switch action {
	case models.CmdApprove:
		return m.Approve(ctx, id)
	case models.CmdSkip:
		return m.Skip(ctx, id)
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidAction, action)
	}
}

// decide 写入审核结果并推送。未找到或已审核时返回错误，不推送。
func (m *ModerationService) decide(ctx context.Context, id string, outcome models.Status) (*models.DonationEvent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingEventID
	}
	ev, err := m.store.Decide(ctx, id, outcome)
	if err != nil {
		return ev, err
	}
	decisionsTotal.WithLabelValues(string(outcome)).Inc()
	m.log.Info("事件 %s -> %s", id, outcome)

	switch outcome {
	case models.StatusApproved:
		m.pub.Publish(hub.Overlay, models.EventMessage{Type: models.MsgShowDonation, Event: ev})
		m.pub.Publish(hub.Dashboard, models.EventIDMessage{Type: models.MsgEventApproved, EventID: ev.ID})
	case models.StatusSkipped:
		m.pub.Publish(hub.Dashboard, models.EventIDMessage{Type: models.MsgEventSkipped, EventID: ev.ID})
	}
	return ev, nil
}

// ClearAll 删除全部事件并通知 dashboard
func (m *ModerationService) ClearAll(ctx context.Context) (int64, error) {
	n, err := m.store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info("已清空 %d 个事件", n)
	m.pub.Publish(hub.Dashboard, models.EventsClearedMessage{Type: models.MsgEventsCleared, Count: n})
	return n, nil
}

func (m *ModerationService) PendingEvents(ctx context.Context) ([]models.DonationEvent, error) {
	return m.store.ListPending(ctx)
}

func (m *ModerationService) AutoMode() bool {
	return m.autoMode.Load()
}

// SetAutoMode 设置自动模式，只影响之后创建的事件
func (m *ModerationService) SetAutoMode(on bool) {
	m.autoMode.Store(on)
	m.autoModeChanged(on)
}

// ToggleAutoMode 切换自动模式并返回新值
func (m *ModerationService) ToggleAutoMode() bool {
	for {
		cur := m.autoMode.Load()
		if m.autoMode.CompareAndSwap(cur, !cur) {
			m.autoModeChanged(!cur)
			return !cur
		}
	}
}

func (m *ModerationService) autoModeChanged(on bool) {
	autoModeGauge.Set(boolGauge(on))
	m.log.Info("自动模式: %v", on)
	m.pub.Publish(hub.Dashboard, models.AutoModeMessage{Type: models.MsgAutoModeChanged, AutoMode: on})
}

// DashboardSnapshot dashboard 连接时下发的初始数据
func (m *ModerationService) DashboardSnapshot(ctx context.Context) (interface{}, error) {
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return models.DashboardInitMessage{
		Type:          models.MsgDashboardInit,
		PendingEvents: pending,
		AutoMode:      m.AutoMode(),
	}, nil
}

// HandleDashboardCommand 执行 dashboard 通过 websocket 发来的指令
func (m *ModerationService) HandleDashboardCommand(ctx context.Context, cmd models.DashboardCommand) error {
	switch cmd.Type {
	case models.CmdApprove:
		_, err := m.Approve(ctx, cmd.EventID)
		return err
	case models.CmdSkip:
		_, err := m.Skip(ctx, cmd.EventID)
		return err
	case models.CmdToggleAuto:
		m.ToggleAutoMode()
		return nil
	case models.CmdSetAuto:
		if cmd.AutoMode == nil {
			return fmt.Errorf("%w: auto_mode required", ErrInvalidRequest)
		}
		m.SetAutoMode(*cmd.AutoMode)
		return nil
	case models.CmdClear:
		_, err := m.ClearAll(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// IsNotFound 未找到事件
func IsNotFound(err error) bool {
	return errors.Is(err, db.ErrEventNotFound)
}

// IsConflict 事件已审核
func IsConflict(err error) bool {
	return errors.Is(err, db.ErrEventDecided)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
