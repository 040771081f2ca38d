package utils

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志封装，底层为 zap SugaredLogger
type Logger struct {
	s *zap.SugaredLogger
}

// LogOptions 日志配置
type LogOptions struct {
	Level  string // debug, info, warn, error
	Output string // stdout, stderr, file
	File   string // output 为 file 时的日志路径
}

var DefaultLogger = NewNopLogger()

// NewLogger 按配置创建日志器，file 输出使用 lumberjack 轮转
func NewLogger(opts LogOptions) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.MessageKey = "message"

	var sink zapcore.WriteSyncer
	switch strings.ToLower(opts.Output) {
	case "file":
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		sink = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zap.NewAtomicLevelAt(ParseLevel(opts.Level)))
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{s: zl.Sugar()}, nil
}

// NewNopLogger 返回丢弃所有输出的日志器
func NewNopLogger() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// ParseLevel 解析日志级别字符串，未知值按 info 处理
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetDefault 替换全局默认日志器
func SetDefault(l *Logger) {
	if l != nil {
		DefaultLogger = l
	}
}

// Named 返回带模块名的子日志器
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

// Debug 调试日志
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.s.Debugf(msg, args...)
}

// Info 信息日志
func (l *Logger) Info(msg string, args ...interface{}) {
	l.s.Infof(msg, args...)
}

// Warn 警告日志
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.s.Warnf(msg, args...)
}

// Error 错误日志
func (l *Logger) Error(msg string, args ...interface{}) {
	l.s.Errorf(msg, args...)
}

// Sync 刷新缓冲
func (l *Logger) Sync() {
	_ = l.s.Sync()
}

// OrDefault 为 nil 时返回 DefaultLogger
func (l *Logger) OrDefault() *Logger {
	if l == nil {
		return DefaultLogger
	}
	return l
}
