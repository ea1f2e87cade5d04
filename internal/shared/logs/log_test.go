package logs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"DocTrack/internal/shared/serverconfig"
	"DocTrack/modules/kit/tracex"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInit_文件输出JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "probe.log")
	err := Init("probe", serverconfig.LogConfig{FileDir: path, Level: "debug", MaxSize: 1})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	t.Cleanup(func() { logger = zap.NewNop() })

	Info("save changes", zap.Int("models", 3))
	ctx := tracex.WithTraceID(context.Background(), "trace-9")
	Kit().WithContext(ctx).Warn("slow save")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"msg":"save changes"`) || !strings.Contains(out, `"models":3`) {
		t.Fatalf("期望 JSON 格式写入文件, got=%s", out)
	}
	if !strings.Contains(out, `"logger":"probe"`) || !strings.Contains(out, `"trace_id":"trace-9"`) {
		t.Fatalf("期望带 logger 名称和 trace_id, got=%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("期望文件里没有颜色转义")
	}
}

func TestInit_非法级别回退到info(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.log")
	if err := Init("probe", serverconfig.LogConfig{FileDir: path, Level: "verbose"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	t.Cleanup(func() { logger = zap.NewNop() })

	Debug("hidden")
	Info("shown")
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Fatalf("期望 info 级别生效, got=%s", b)
	}
}

func TestSetLevel_运行时调整(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.log")
	if err := Init("probe", serverconfig.LogConfig{FileDir: path, Level: "warn"}); err != nil {
		t.Fatalf("err=%v", err)
	}
	t.Cleanup(func() {
		logger = zap.NewNop()
		SetLevel("info")
	})

	Info("before")
	SetLevel("DEBUG")
	if Level() != zapcore.DebugLevel {
		t.Fatalf("期望 debug, got=%v", Level())
	}
	Debug("after")
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "before") || !strings.Contains(string(b), "after") {
		t.Fatalf("期望级别调整立即生效, got=%s", b)
	}
}
