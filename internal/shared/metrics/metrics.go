package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 保存结果标签值。
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
)

// Metrics 记录保存周期的次数、写模型数量和耗时。
// 方法对 nil 接收者安全，未配置指标时可以直接调用。
type Metrics struct {
	SaveTotal    *prometheus.CounterVec
	WriteModels  *prometheus.CounterVec
	SaveDuration prometheus.Histogram
}

// New 在 reg 上注册全部指标；reg 为 nil 时只创建不注册。
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SaveTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dbcontext_save_total",
			Help: "Total number of SaveChanges cycles by result",
		}, []string{"result"}),
		WriteModels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dbcontext_write_models_total",
			Help: "Total number of write models sent to the store by kind",
		}, []string{"kind"}),
		SaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbcontext_save_duration_seconds",
			Help:    "Duration of SaveChanges cycles that reached the store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveSave 记录一次保存的结果；start 为零值时不记录耗时。
func (m *Metrics) ObserveSave(start time.Time, result string) {
	if m == nil {
		return
	}
	m.SaveTotal.WithLabelValues(result).Inc()
	if !start.IsZero() {
		m.SaveDuration.Observe(time.Since(start).Seconds())
	}
}

// AddWriteModels 按种类累加已成功执行的写模型数量。
func (m *Metrics) AddWriteModels(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.WriteModels.WithLabelValues(kind).Add(float64(n))
	}
}
