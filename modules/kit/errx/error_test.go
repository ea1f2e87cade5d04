package errx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Is_只按code比较语义(t *testing.T) {
	e1 := NewBiz("INVALID_OPERATION", "x").WithData("type", "Order").WithCause(errors.New("cause1"))
	e2 := NewBiz("INVALID_OPERATION", "x2").WithData("id", "1").WithCause(errors.New("cause2"))
	if !errors.Is(e1, e2) {
		t.Fatalf("期望 errors.Is(e1, e2)==true（只按 code 判断语义），e1=%v e2=%v", e1, e2)
	}
	if Is(e1, ErrInternal) {
		t.Fatalf("期望不同 code 不匹配, e1=%v", e1)
	}
}

func TestError_业务错误不捕获栈_但保留cause链(t *testing.T) {
	cause := errors.New("entity has no id")
	err := NewBiz("INVALID_OPERATION", "实体没有标识").WithCause(cause)
	if got := err.Stack(); got != nil {
		t.Fatalf("期望业务错误不捕获栈，got=%v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("期望 cause 链不丢，err=%v", err)
	}
	if err.IsSys() {
		t.Fatalf("期望业务类错误 IsSys()==false")
	}
}

func TestError_系统错误捕获一次栈_且不重复捕获(t *testing.T) {
	cause := errors.New("connection reset")
	sys := NewSys("STORE_UNAVAILABLE", "存储不可用").WithCause(cause)
	if got := sys.Stack(); len(got) == 0 {
		t.Fatalf("期望系统错误捕获栈（发生/转换处），got=%v", got)
	}

	sys2 := NewSys("MAPPING_ERROR", "映射错误").WithCause(sys)
	if got := sys2.Stack(); got != nil {
		t.Fatalf("期望上层系统错误不重复捕获栈（cause 链里已有栈），got=%v", got)
	}
}

func TestError_Data_防止外部map污染(t *testing.T) {
	m := map[string]any{"type": "Order"}
	err := NewBiz("INVALID_OPERATION", "").WithDataMap(m)
	m["type"] = "mutated"
	if got := err.Data()["type"]; got != "Order" {
		t.Fatalf("期望构造时复制 data，避免外部后续修改影响错误上下文；got=%v", got)
	}
}

func TestFrom_穿透fmt包装(t *testing.T) {
	base := ErrTimeout.WithData("collection", "orders")
	wrapped := fmt.Errorf("save: %w", base)
	got, ok := From(wrapped)
	if !ok {
		t.Fatalf("期望 From 取出 *Error, wrapped=%v", wrapped)
	}
	if got.Code() != CodeTimeout || got.Data()["collection"] != "orders" {
		t.Fatalf("期望取回原始错误, got=%v data=%v", got, got.Data())
	}
}

func TestClassify_上下文错误归一(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Classify(ctx, ctx.Err(), ErrUnavailable); !Is(got, ErrCanceled) {
		t.Fatalf("期望 canceled, got=%v", got)
	}
	if got := Classify(context.Background(), context.DeadlineExceeded, ErrUnavailable); !Is(got, ErrTimeout) {
		t.Fatalf("期望 timeout, got=%v", got)
	}
	dial := errors.New("dial tcp: refused")
	got := Classify(context.Background(), dial, ErrUnavailable)
	if !Is(got, ErrUnavailable) || !errors.Is(got, dial) {
		t.Fatalf("期望 unavailable 且保留 cause, got=%v", got)
	}
	if Classify(context.Background(), ErrTimeout, ErrUnavailable) != ErrTimeout {
		t.Fatalf("期望 *Error 原样返回")
	}
	if Classify(context.Background(), nil, ErrUnavailable) != nil {
		t.Fatalf("期望 nil 输入返回 nil")
	}
}
