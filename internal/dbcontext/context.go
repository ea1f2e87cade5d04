// Package dbcontext 是面向调用方的工作单元：Context 持有变更跟踪器，Set[T] 提供按类型的增删改查。
//
// 写操作只改变跟踪状态，SaveChanges 时才编译成写模型并提交到存储。
// Context 假定单写者使用；并发的 SaveChanges 会被直接拒绝。
package dbcontext

import (
	"context"
	"sync/atomic"
	"time"

	"DocTrack/internal/commands"
	"DocTrack/internal/mapping"
	"DocTrack/internal/shared/dberr"
	"DocTrack/internal/shared/metrics"
	"DocTrack/internal/store"
	"DocTrack/internal/tracking"
	"DocTrack/modules/kit/errx"
	"DocTrack/modules/kit/logx"
	"DocTrack/modules/kit/tracex"

	"go.uber.org/zap"
)

const (
	OpSaveChanges = "dbcontext.SaveChanges"
	OpFind        = "dbcontext.Find"
	OpQuery       = "dbcontext.Query"
)

type Context struct {
	store    store.Store
	registry *mapping.Registry
	codec    *mapping.Codec
	tracker  *tracking.Tracker
	logger   logx.Logger
	metrics  *metrics.Metrics
	tenantID string
	slowSave time.Duration

	staged []commands.WriteCommand
	saving atomic.Bool
}

type Option func(*Context)

// WithRegistry 指定映射注册表，默认使用进程级 mapping.Default()。
func WithRegistry(r *mapping.Registry) Option {
	return func(c *Context) {
		if r != nil {
			c.registry = r
		}
	}
}

func WithLogger(l logx.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTenant 设置租户；对带租户字段的类型，过滤条件会 AND 上租户相等。
func WithTenant(tenantID string) Option {
	return func(c *Context) {
		c.tenantID = tenantID
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithSlowSave 让耗时超过 d 的 SaveChanges 额外打一条 WARN，d<=0 关闭。
func WithSlowSave(d time.Duration) Option {
	return func(c *Context) {
		c.slowSave = d
	}
}

func New(s store.Store, opts ...Option) *Context {
	c := &Context{
		store:    s,
		registry: mapping.Default(),
		logger:   logx.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.codec = mapping.NewCodec(c.registry)
	c.tracker = tracking.NewTracker(c.registry, c.codec)
	return c
}

func (c *Context) ChangeTracker() *tracking.Tracker {
	return c.tracker
}

func (c *Context) TenantID() string {
	return c.tenantID
}

func (c *Context) Registry() *mapping.Registry {
	return c.registry
}

// HasChanges 表示有待写的条目或暂存的删除命令。不做变更检测。
func (c *Context) HasChanges() bool {
	return len(c.staged) > 0 || c.tracker.HasChanges()
}

// Entry 返回实体的跟踪条目，未跟踪返回 nil。
func (c *Context) Entry(entity any) *tracking.Entry {
	return c.tracker.GetEntry(entity)
}

func (c *Context) stage(cmd commands.WriteCommand) {
	c.staged = append(c.staged, cmd)
}

// SaveChanges 检测变更、编译写模型并按集合提交。
//
// 成功后 Added/Updated 转为 NoChanges，Deleted 移出跟踪，暂存命令清空。
// 编译失败、存储失败或 ctx 取消时，跟踪状态与暂存命令保持不变，可以直接重试；
// 存储返回的错误原样返回。没有待写内容时不访问存储。
func (c *Context) SaveChanges(ctx context.Context) error {
	if !c.saving.CompareAndSwap(false, true) {
		c.metrics.ObserveSave(time.Time{}, metrics.ResultRejected)
		return dberr.ErrConcurrentSave
	}
	defer c.saving.Store(false)

	ctx = tracex.EnsureTraceID(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.store == nil {
		return errx.ErrUnavailable.WithCause(errNoStore)
	}

	if err := c.tracker.DetectChanges(); err != nil {
		c.fail(ctx, err)
		return err
	}
	entries := c.tracker.PendingEntries()
	if len(entries) == 0 && len(c.staged) == 0 {
		c.metrics.ObserveSave(time.Time{}, metrics.ResultNoop)
		return nil
	}

	batch, err := commands.Compile(c.codec, entries, c.staged, c.tenantID)
	if err != nil {
		c.fail(ctx, err)
		return err
	}

	start := time.Now()
	for _, coll := range batch.Collections {
		if err := c.store.BulkWrite(ctx, coll, batch.Models[coll]); err != nil {
			logx.ReportSysErrorWithLoggerContext(ctx, c.logger, logx.NewSysLog(OpSaveChanges, err),
				zap.String("collection", coll),
				zap.Int("models", len(batch.Models[coll])),
			)
			c.metrics.ObserveSave(start, metrics.ResultError)
			return err
		}
	}

	if err := c.tracker.Clear(); err != nil {
		c.fail(ctx, err)
		return err
	}
	c.staged = nil

	counts := batch.Counts()
	elapsed := time.Since(start)
	c.metrics.ObserveSave(start, metrics.ResultOK)
	c.metrics.AddWriteModels(counts)
	fields := []zap.Field{
		zap.Strings("collections", batch.Collections),
		zap.Int("models", batch.Len()),
		zap.Any("counts", counts),
		zap.Duration("elapsed", elapsed),
	}
	logx.ReportOpWithLoggerContext(ctx, c.logger, OpSaveChanges, nil, fields...)
	if c.slowSave > 0 && elapsed > c.slowSave {
		c.logger.WithContext(ctx).Warn("slow save", append(fields, zap.Duration("threshold", c.slowSave))...)
	}
	return nil
}

// fail 按错误类别记录日志：调用方误用走 biz，映射等技术错误走 sys。
func (c *Context) fail(ctx context.Context, err error) {
	c.metrics.ObserveSave(time.Time{}, metrics.ResultError)
	if e, ok := errx.From(err); ok && !e.IsSys() {
		logx.ReportBizWithLoggerContext(ctx, c.logger, logx.NewBizLog(OpSaveChanges, e.CodeText(), err.Error()))
		return
	}
	logx.ReportSysErrorWithLoggerContext(ctx, c.logger, logx.NewSysLog(OpSaveChanges, err))
}
