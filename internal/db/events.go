package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/madjin/crypto-superchat/internal/models"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrEventDecided   = errors.New("event already decided")
	ErrInvalidOutcome = errors.New("invalid moderation outcome")
)

// Filter 创建事件时用于计算 auto_filtered
type Filter interface {
	IsBanned(ctx context.Context, memo string) (bool, error)
}

// CreateParams 新建事件的参数
type CreateParams struct {
	Signature string
	Sender    string
	Amount    decimal.Decimal
	Memo      string
	Tier      models.Tier
}

// EventStore 打赏事件存储
type EventStore struct {
	db     *gorm.DB
	filter Filter
	now    func() time.Time
}

func NewEventStore(conn *gorm.DB, filter Filter) *EventStore {
	return &EventStore{db: conn, filter: filter, now: time.Now}
}

// WithClock 替换时间来源，测试用
func (s *EventStore) WithClock(now func() time.Time) *EventStore {
	s.now = now
	return s
}

// Create 按签名幂等创建。已存在时原样返回且不再执行过滤；created 表示本次是否真正写入。
func (s *EventStore) Create(ctx context.Context, p CreateParams) (*models.DonationEvent, bool, error) {
	existing, err := s.Get(ctx, p.Signature)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrEventNotFound) {
		return nil, false, err
	}

	filtered, err := s.filter.IsBanned(ctx, p.Memo)
	if err != nil {
		return nil, false, fmt.Errorf("屏蔽词检查失败: %w", err)
	}

	now := s.now()
	ev := models.DonationEvent{
		ID:           p.Signature,
		Signature:    p.Signature,
		Sender:       p.Sender,
		Amount:       p.Amount,
		Memo:         p.Memo,
		Tier:         p.Tier,
		Status:       models.StatusPending,
		CreatedAt:    now.Unix(),
		Seq:          now.UnixNano(),
		AutoFiltered: filtered,
	}

	// 并发写入同一签名时只有一个能插入成功
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ev)
	if res.Error != nil {
		return nil, false, fmt.Errorf("保存事件失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		winner, err := s.Get(ctx, p.Signature)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	return &ev, true, nil
}

// Get 按 id 查询
func (s *EventStore) Get(ctx context.Context, id string) (*models.DonationEvent, error) {
	var ev models.DonationEvent
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListPending 待审核队列，最早创建的在前
func (s *EventStore) ListPending(ctx context.Context) ([]models.DonationEvent, error) {
	events := make([]models.DonationEvent, 0)
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&events).Error
	return events, err
}

// Decide 把 pending 事件置为 approved 或 skipped 并记录决定时间。
// 已经做出决定的事件不会被覆盖，返回 ErrEventDecided 和当前记录。
func (s *EventStore) Decide(ctx context.Context, id string, outcome models.Status) (*models.DonationEvent, error) {
	if !outcome.Terminal() {
		return nil, ErrInvalidOutcome
	}

	var ev models.DonationEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		decidedAt := s.now().Unix()
		res := tx.Model(&models.DonationEvent{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]interface{}{"status": outcome, "decided_at": decidedAt})
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Where("id = ?", id).First(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		if res.RowsAffected == 0 {
			return ErrEventDecided
		}
		return nil
	})
	if errors.Is(err, ErrEventDecided) {
		return &ev, err
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ClearAll 删除全部事件，返回删除数量
func (s *EventStore) ClearAll(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DonationEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Stats 各状态的事件数量
func (s *EventStore) Stats(ctx context.Context) (map[models.Status]int64, error) {
	var rows []struct {
		Status models.Status
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.DonationEvent{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[models.Status]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusSkipped:  0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
