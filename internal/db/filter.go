package db

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/madjin/crypto-superchat/internal/models"
)

// ContentFilter 屏蔽词过滤。每次调用都重新读取启用中的词，不做缓存。
type ContentFilter struct {
	db *gorm.DB
}

func NewContentFilter(conn *gorm.DB) *ContentFilter {
	return &ContentFilter{db: conn}
}

// ActiveWords 返回所有启用中的屏蔽词（小写）
func (f *ContentFilter) ActiveWords(ctx context.Context) ([]string, error) {
	var words []string
	err := f.db.WithContext(ctx).
		Model(&models.BannedWord{}).
		Where("active = ?", true).
		Pluck("word", &words).Error
	if err != nil {
		return nil, err
	}
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return words, nil
}

// IsBanned memo 中任意位置出现任一启用中的屏蔽词即命中，不区分大小写
func (f *ContentFilter) IsBanned(ctx context.Context, memo string) (bool, error) {
	words, err := f.ActiveWords(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(memo)
	for _, w := range words {
		if w != "" && strings.Contains(lower, w) {
			return true, nil
		}
	}
	return false, nil
}
