// Package tracex 在 context 上携带 trace_id / span_id，供日志关联一次 SaveChanges 的所有输出。
package tracex

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey uint8

const (
	traceIDKey ctxKey = iota
	spanIDKey
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, traceIDKey)
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func SpanIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, spanIDKey)
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}

// NewTraceID 返回 32 位 hex 的随机 trace_id（UUIDv4 去掉连字符）。
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EnsureTraceID 在 ctx 没有 trace_id 时补一个；nil ctx 视为 Background。
func EnsureTraceID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := TraceIDFrom(ctx); ok {
		return ctx
	}
	return WithTraceID(ctx, NewTraceID())
}
