package logx

import (
	"context"

	"go.uber.org/zap"
)

// Logger 是库内部使用的最小日志接口。
//
// 约束：
// - 保持 API 极简，调用方可以用任何 zap 实例适配
// - 只承载结构化字段 + ctx 透传（trace/span 等）
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	WithContext(ctx context.Context) Logger
}

// Nop 返回丢弃所有日志的 Logger，作为未注入 logger 时的默认值。
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(msg string, fields ...zap.Field)   {}
func (nopLogger) Error(msg string, fields ...zap.Field)  {}
func (nopLogger) Debug(msg string, fields ...zap.Field)  {}
func (nopLogger) Warn(msg string, fields ...zap.Field)   {}
func (nopLogger) WithContext(ctx context.Context) Logger { return nopLogger{} }
