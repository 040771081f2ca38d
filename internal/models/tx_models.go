package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EnhancedTransaction Helius 增强交易（只保留用到的字段）
type EnhancedTransaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
	Memos          []interface{}   `json:"memos,omitempty"`
	Memo           *string         `json:"memo,omitempty"`
}

// TokenTransfer 交易中的一笔 SPL 代币转账
type TokenTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	Mint            string          `json:"mint"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
}

// ExtractMemo 优先取 memos 列表的第一项，其次取 memo 字段，返回去掉首尾空白后的内容
func (tx *EnhancedTransaction) ExtractMemo() string {
	if len(tx.Memos) > 0 && tx.Memos[0] != nil {
		return strings.TrimSpace(fmt.Sprint(tx.Memos[0]))
	}
	if tx.Memo != nil {
		return strings.TrimSpace(*tx.Memo)
	}
	return ""
}

const CandidateTypeMemo = "memo"

// Candidate 从一笔链上交易中提取、尚未落库的打赏
type Candidate struct {
	Type      string          `json:"type"`
	Memo      string          `json:"memo"`
	Amount    decimal.Decimal `json:"amount"`
	Signature string          `json:"signature"`
	From      string          `json:"from"`
}

// EventAction REST 审核请求
type EventAction struct {
	EventID string `json:"event_id" binding:"required"`
	Action  string `json:"action" binding:"required"` // approve 或 skip
}

// AutoModeRequest 设置自动模式
type AutoModeRequest struct {
	AutoMode *bool `json:"auto_mode" binding:"required"`
}

// BannedWordRequest 新增屏蔽词
type BannedWordRequest struct {
	Word string `json:"word" binding:"required"`
}

// TokenMetadata 代币元数据
type TokenMetadata struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Name     *string `json:"name"`
	Logo     *string `json:"logo"`
	Decimals int     `json:"decimals"`
}
