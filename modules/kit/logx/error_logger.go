package logx

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// BizLog 描述一次调用方误用，例如对没有标识的实体做删除。
type BizLog struct {
	Action  string
	Reason  string
	Message string
}

// SysLog 描述一次技术错误，例如映射失败或存储不可用。
type SysLog struct {
	Action string
	Err    error
}

func NewBizLog(action, reason, message string) BizLog {
	return BizLog{Action: action, Reason: reason, Message: message}
}

func NewSysLog(action string, err error) SysLog {
	return SysLog{Action: action, Err: err}
}

// ReportOpWithLoggerContext 记录一次存储操作的结果。
// 成功走 DEBUG；失败走 WARN，真正的错误由调用方再走 ReportSysErrorWithLoggerContext。
func ReportOpWithLoggerContext(ctx context.Context, l Logger, action string, err error, fields ...zap.Field) {
	if l == nil {
		return
	}
	base := make([]zap.Field, 0, len(fields)+3)
	base = append(base, zap.String("log_type", "op"), zap.String("action", action))
	base = append(base, fields...)
	if err == nil {
		l.WithContext(ctx).Debug(action, base...)
		return
	}
	l.WithContext(ctx).Warn(action, append(base, zap.Error(err))...)
}

// ReportBizWithLoggerContext 记录调用方误用：INFO、err_type=biz、不带栈。
func ReportBizWithLoggerContext(ctx context.Context, l Logger, biz BizLog, fields ...zap.Field) {
	if l == nil {
		return
	}
	action := orDefault(biz.Action, "invalid_operation")
	base := []zap.Field{zap.String("err_type", "biz"), zap.String("action", action)}
	base = appendNonEmpty(base, "reason", biz.Reason)
	base = appendNonEmpty(base, "biz_message", biz.Message)
	base = append(base, fields...)

	l.WithContext(ctx).Info(joinMsg(action, "reason", biz.Reason, "msg", biz.Message), base...)
}

// ReportSysErrorWithLoggerContext 记录技术错误：ERROR、err_type=sys，带错误码、上下文与最早的栈。
func ReportSysErrorWithLoggerContext(ctx context.Context, l Logger, sys SysLog, fields ...zap.Field) {
	if sys.Err == nil || l == nil {
		return
	}
	action := orDefault(sys.Action, "sys_error")
	meta := BuildErrorLog(sys.Err)

	base := []zap.Field{zap.String("err_type", "sys"), zap.String("action", action)}
	base = appendNonEmpty(base, "error_code", meta.Code)
	if len(meta.CauseChain) != 0 {
		base = append(base, zap.Strings("cause_chain", meta.CauseChain))
	}
	if len(meta.Data) != 0 {
		base = append(base, zap.Any("error_data", meta.Data))
	}
	base = appendNonEmpty(base, "origin_caller", meta.Origin)
	base = appendNonEmpty(base, "stack_origin", meta.Stack)
	base = append(base, fields...)

	msg := joinMsg(action, "reason", meta.Reason, "error", meta.Error)
	if meta.Reason == "" {
		msg = joinMsg(action, "error", meta.Error, "msg", meta.Msg)
	}
	l.WithContext(ctx).Error(msg, base...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func appendNonEmpty(fields []zap.Field, key, value string) []zap.Field {
	if value == "" {
		return fields
	}
	return append(fields, zap.String(key, value))
}

// joinMsg 拼出 "action, k1:v1, k2:v2"，空值跳过。
func joinMsg(action string, kv ...string) string {
	var b strings.Builder
	b.WriteString(action)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		b.WriteString(", ")
		b.WriteString(kv[i])
		b.WriteString(":")
		b.WriteString(kv[i+1])
	}
	return b.String()
}
