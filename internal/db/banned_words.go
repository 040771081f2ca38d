package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/madjin/crypto-superchat/internal/models"
)

var (
	ErrEmptyWord        = errors.New("banned word is empty")
	ErrBannedWordAbsent = errors.New("banned word not found")
)

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// ListBannedWords 返回全部屏蔽词（含停用的）
func ListBannedWords(ctx context.Context, conn *gorm.DB) ([]models.BannedWord, error) {
	words := make([]models.BannedWord, 0)
	err := conn.WithContext(ctx).Order("word ASC").Find(&words).Error
	return words, err
}

// AddBannedWord 新增屏蔽词，已存在则重新启用
func AddBannedWord(ctx context.Context, conn *gorm.DB, word string) (*models.BannedWord, error) {
	w := normalizeWord(word)
	if w == "" {
		return nil, ErrEmptyWord
	}
	bw := models.BannedWord{Word: w, Active: true}
	err := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "word"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"active": true}),
	}).Create(&bw).Error
	if err != nil {
		return nil, err
	}
	var out models.BannedWord
	if err := conn.WithContext(ctx).Where("word = ?", w).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableBannedWord 停用屏蔽词
func DisableBannedWord(ctx context.Context, conn *gorm.DB, word string) error {
	res := conn.WithContext(ctx).
		Model(&models.BannedWord{}).
		Where("word = ?", normalizeWord(word)).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// mysql 对未变化的行不计入 RowsAffected，再确认一次是否存在
	var count int64
	if err := conn.WithContext(ctx).Model(&models.BannedWord{}).Where("word = ?", normalizeWord(word)).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrBannedWordAbsent
	}
	return nil
}
