// Package logs 持有进程级 zap logger：控制台彩色输出，配置了 file_dir 时另写一份 JSON 滚动文件。
package logs

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"DocTrack/internal/shared/serverconfig"
	"DocTrack/modules/kit/logx"
)

var (
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 按配置重建进程 logger，旧 logger 先刷盘。级别解析失败时用 info。
func Init(appName string, cfg serverconfig.LogConfig) error {
	level.SetLevel(parseLevel(cfg.Level))

	base := encoderConfig()
	console := base
	console.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level),
	}
	// 文件只写 JSON，避免颜色转义进文件
	if cfg.FileDir != "" {
		file := base
		file.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(file), zapcore.AddSync(rollingFile(cfg)), level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	_ = logger.Sync()
	logger = zap.New(zapcore.NewTee(cores...), opts...).Named(appName)
	return nil
}

// SetLevel 在运行时调整级别，配置热更新时调用。
func SetLevel(text string) {
	level.SetLevel(parseLevel(text))
}

func Level() zapcore.Level {
	return level.Level()
}

func parseLevel(text string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(text))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// 2026-01-28T10:00:00 INFO  probe  save changes  probe_main.go:12
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func rollingFile(cfg serverconfig.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.FileDir,
		MaxSize:    max(1, cfg.MaxSize), // MB
		MaxBackups: max(0, cfg.MaxBackups),
		MaxAge:     max(0, cfg.MaxAge), // days
		Compress:   cfg.Compress,
	}
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal 记录后 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// Logger 返回当前的 *zap.Logger，未初始化时是 Nop。
func Logger() *zap.Logger {
	return logger
}

// Kit 返回适配 logx.Logger 的进程 logger，供 dbcontext 和 store 使用。
func Kit() logx.Logger {
	return logx.NewZapLogger(logger)
}

func Sync() error {
	return logger.Sync()
}
