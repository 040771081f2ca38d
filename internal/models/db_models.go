package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// overlay 前端按数字读取金额
	decimal.MarshalJSONWithoutQuotes = true
}

// Tier 金额档位，用于展示样式
type Tier string

const (
	TierLow   Tier = "low"
	TierMid   Tier = "mid"
	TierHigh  Tier = "high"
	TierWhale Tier = "whale"
)

var (
	whaleThreshold = decimal.NewFromInt(100000)
	highThreshold  = decimal.NewFromInt(10000)
	midThreshold   = decimal.NewFromInt(1000)
)

// TierForAmount 按金额划分档位，各档下限包含在内
func TierForAmount(amount decimal.Decimal) Tier {
	switch {
	case amount.GreaterThanOrEqual(whaleThreshold):
		return TierWhale
	case amount.GreaterThanOrEqual(highThreshold):
		return TierHigh
	case amount.GreaterThanOrEqual(midThreshold):
		return TierMid
	default:
		return TierLow
	}
}

// Status 审核状态
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusSkipped  Status = "skipped"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusSkipped
}

// DonationEvent 打赏事件，以交易签名为主键
type DonationEvent struct {
	ID           string          `gorm:"primaryKey;size:128" json:"id"`
	Signature    string          `gorm:"size:128;not null" json:"signature"`
	Sender       string          `gorm:"size:64;not null" json:"sender"`
	Amount       decimal.Decimal `gorm:"type:numeric(38,9);not null" json:"amount"`
	Memo         string          `gorm:"type:text;not null" json:"memo"`
	Tier         Tier            `gorm:"size:10;not null" json:"tier"`
	Status       Status          `gorm:"size:10;not null;default:'pending';index:idx_events_queue,priority:1" json:"status"`
	CreatedAt    int64           `gorm:"autoCreateTime:false;not null;index:idx_events_queue,priority:2" json:"created_at"` // unix 秒
	Seq          int64           `gorm:"not null;index:idx_events_queue,priority:3" json:"-"`                               // 同一秒内的先后顺序
	DecidedAt    *int64          `json:"decided_at"`
	AutoFiltered bool            `gorm:"not null;default:false" json:"auto_filtered"` // 创建时命中屏蔽词
}

func (DonationEvent) TableName() string {
	return "events"
}

// BannedWord 屏蔽词，匹配时不区分大小写
type BannedWord struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Word   string `gorm:"size:100;not null;uniqueIndex" json:"word"`
	Active bool   `gorm:"not null;default:true" json:"active"`
}

func (BannedWord) TableName() string {
	return "banned_words"
}

// DefaultBannedWords 首次初始化时写入
var DefaultBannedWords = []string{"scam", "fake", "spam", "bot", "rug"}
