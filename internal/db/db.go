package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/madjin/crypto-superchat/internal/config"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/utils"
)

// gormWriter 把 gorm 日志转到 utils.Logger
type gormWriter struct {
	log *utils.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(format, args...)
}

// Open 按驱动类型连接数据库。sqlite 只允许单连接，避免并发写时锁表。
func Open(cfg config.DatabaseConfig, log *utils.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	gl := gormlogger.New(gormWriter{log: log.OrDefault().Named("gorm")}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if strings.ToLower(cfg.Driver) == "sqlite" || cfg.Driver == "" {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return conn, nil
}

// Init 迁移表结构并写入默认屏蔽词
func Init(ctx context.Context, conn *gorm.DB) error {
	if err := conn.WithContext(ctx).AutoMigrate(&models.DonationEvent{}, &models.BannedWord{}); err != nil {
		return fmt.Errorf("表迁移失败: %w", err)
	}
	return SeedBannedWords(ctx, conn)
}

// SeedBannedWords 屏蔽词表为空时写入默认列表
func SeedBannedWords(ctx context.Context, conn *gorm.DB) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.BannedWord{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		words := make([]models.BannedWord, 0, len(models.DefaultBannedWords))
		for _, w := range models.DefaultBannedWords {
			words = append(words, models.BannedWord{Word: w, Active: true})
		}
		return tx.Create(&words).Error
	})
}

// Ping 检查数据库连接
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
