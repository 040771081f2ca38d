package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Helius     HeliusConfig     `mapstructure:"helius"`
	Listener   ListenerConfig   `mapstructure:"listener"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Hub        HubConfig        `mapstructure:"hub"`
	Task       TaskConfig       `mapstructure:"task"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式: debug, release, test
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, mysql, postgres
	DSN    string `mapstructure:"dsn"`
}

// HeliusConfig 上游交易流与 RPC 配置
type HeliusConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIBase string `mapstructure:"api_base"` // 增强交易 REST 接口
	RPCURL  string `mapstructure:"rpc_url"`  // JSON-RPC，用于关联代币账户和 DAS 查询
}

// ListenerConfig 轮询监听配置
type ListenerConfig struct {
	Recipient    string        `mapstructure:"recipient"` // 收款钱包地址
	Mint         string        `mapstructure:"mint"`      // 代币 mint
	PageLimit    int           `mapstructure:"page_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

type ModerationConfig struct {
	AutoMode bool `mapstructure:"auto_mode"`
}

type HubConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// TaskConfig 定时任务间隔
type TaskConfig struct {
	StatsInterval     time.Duration `mapstructure:"stats_interval"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// 兼容原有部署使用的环境变量名
var envBindings = map[string]string{
	"server.port":          "PORT",
	"server.mode":          "GIN_MODE",
	"database.driver":      "DATABASE_DRIVER",
	"database.dsn":         "DATABASE_URL",
	"helius.api_key":       "HELIUS_API_KEY",
	"helius.api_base":      "HELIUS_API_BASE",
	"helius.rpc_url":       "HELIUS_RPC_URL",
	"listener.recipient":   "PRIZE_WALLET_ADDRESS",
	"listener.mint":        "AI16Z_MINT",
	"moderation.auto_mode": "AUTO_MODE",
	"log.level":            "LOG_LEVEL",
	"log.output":           "LOG_OUTPUT",
	"log.file":             "LOG_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "overlay.db")
	v.SetDefault("helius.api_key", "")
	v.SetDefault("helius.api_base", "https://api.helius.xyz/v0")
	v.SetDefault("helius.rpc_url", "https://mainnet.helius-rpc.com")
	v.SetDefault("listener.recipient", "")
	v.SetDefault("listener.mint", "HeLp6NuQkmYB4pYWo2zYs22mESHXPQYzXbB8n4V98jwC")
	v.SetDefault("listener.page_limit", 50)
	v.SetDefault("listener.poll_interval", "3s")
	v.SetDefault("listener.error_backoff", "5s")
	v.SetDefault("moderation.auto_mode", false)
	v.SetDefault("hub.pool_size", 64)
	v.SetDefault("task.stats_interval", "30s")
	v.SetDefault("task.keepalive_interval", "25s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 读取 .env、配置文件和环境变量。path 为空时在当前目录和 ./config 下查找 config.yaml，
// 找不到配置文件不算错误。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.Listener.Recipient = strings.TrimSpace(cfg.Listener.Recipient)
	cfg.Helius.APIKey = strings.TrimSpace(cfg.Helius.APIKey)
	return &cfg, nil
}

// ListenerEnabled 缺少 API key 或收款地址时不启动监听
func (c *Config) ListenerEnabled() bool {
	return c.Helius.APIKey != "" && c.Listener.Recipient != ""
}

// Addr gin 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
