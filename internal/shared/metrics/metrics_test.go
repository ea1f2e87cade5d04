package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather err=%v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetrics_记录保存结果和写模型(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSave(time.Now(), ResultOK)
	m.ObserveSave(time.Time{}, ResultNoop)
	m.AddWriteModels(map[string]int{"insert": 2, "delete": 1})

	if got := counterValue(t, reg, "dbcontext_save_total", "result", ResultOK); got != 1 {
		t.Fatalf("期望 ok=1, got=%v", got)
	}
	if got := counterValue(t, reg, "dbcontext_save_total", "result", ResultNoop); got != 1 {
		t.Fatalf("期望 noop=1, got=%v", got)
	}
	if got := counterValue(t, reg, "dbcontext_write_models_total", "kind", "insert"); got != 2 {
		t.Fatalf("期望 insert=2, got=%v", got)
	}
}

func TestMetrics_nil接收者安全(t *testing.T) {
	var m *Metrics
	m.ObserveSave(time.Now(), ResultError)
	m.AddWriteModels(map[string]int{"insert": 1})
}

func TestNew_nil注册器不注册全局(t *testing.T) {
	New(nil)
	New(nil)
}
