package logx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"DocTrack/modules/kit/errx"
	"DocTrack/modules/kit/tracex"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildErrorLog_能提取语义与栈(t *testing.T) {
	cause := errors.New("connection refused")
	e := errx.NewSys("STORE_UNAVAILABLE", "存储不可用").
		WithData("collection", "orders").
		WithCause(cause)

	meta := BuildErrorLog(e)
	if meta.Error == "" {
		t.Fatalf("期望 meta.Error 非空")
	}
	if meta.Code == "" {
		t.Fatalf("期望 meta.Code 非空")
	}
	if meta.Msg == "" {
		t.Fatalf("期望 meta.Msg 非空")
	}
	if meta.Data == nil || meta.Data["collection"] != "orders" {
		t.Fatalf("期望 meta.Data 包含 collection=orders, got=%v", meta.Data)
	}
	if len(meta.CauseChain) == 0 {
		t.Fatalf("期望 meta.CauseChain 非空")
	}
	if meta.Origin == "" || meta.Stack == "" {
		t.Fatalf("期望 meta.Origin/meta.Stack 非空（错误发生/转换处栈） origin=%q stack=%q", meta.Origin, meta.Stack)
	}
}

func TestReportSysError_带trace_id与错误码(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))
	ctx := tracex.WithTraceID(context.Background(), "t-1")

	err := errx.NewSys("STORE_UNAVAILABLE", "存储不可用").WithCause(errors.New("io timeout"))
	ReportSysErrorWithLoggerContext(ctx, l, NewSysLog("save_changes", err))

	entries := logs.FilterMessageSnippet("save_changes").All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条错误日志, got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "t-1" {
		t.Fatalf("期望日志带 trace_id, got=%v", fields["trace_id"])
	}
	if fields["error_code"] != "STORE_UNAVAILABLE" {
		t.Fatalf("期望日志带 error_code, got=%v", fields["error_code"])
	}
}

func TestReportOp_成功走debug失败走warn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	ReportOpWithLoggerContext(context.Background(), l, "bulk_write", nil)
	ReportOpWithLoggerContext(context.Background(), l, "bulk_write", errors.New("boom"))

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("期望 2 条日志, got=%d", len(all))
	}
	if all[0].Level != zapcore.DebugLevel || all[1].Level != zapcore.WarnLevel {
		t.Fatalf("期望 debug/warn, got=%v/%v", all[0].Level, all[1].Level)
	}
}

func TestNop_不panic(t *testing.T) {
	l := Nop()
	l.WithContext(context.Background()).Info("x")
	ReportBizWithLoggerContext(context.Background(), l, NewBizLog("remove", "NO_ID", "实体没有标识"))
}

func TestBuildErrorLog_展开Join分支(t *testing.T) {
	a := errors.New("write #0: duplicate key")
	b := errors.New("write #2: duplicate key")
	err := fmt.Errorf("bulk write: %w", errors.Join(a, b))

	meta := BuildErrorLog(err)
	if meta.Code != "" {
		t.Fatalf("期望普通错误没有 code, got=%q", meta.Code)
	}
	// 第一层是 Join 本身，随后是两个分支
	if len(meta.CauseChain) != 3 {
		t.Fatalf("期望 3 层 cause, got=%v", meta.CauseChain)
	}
}
