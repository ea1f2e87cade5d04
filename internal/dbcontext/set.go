package dbcontext

import (
	"context"
	"errors"
	"reflect"

	"DocTrack/internal/commands"
	"DocTrack/internal/mapping"
	"DocTrack/internal/shared/dberr"
	"DocTrack/internal/tracking"
	"DocTrack/modules/kit/errx"
	"DocTrack/modules/kit/logx"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

var errNoStore = errors.New("dbcontext: no store configured")

// Set 是某个实体类型在 Context 上的视图。多个 Set 共享同一个跟踪器，一次 SaveChanges 一起提交。
// 实体一律以 *T 传入和返回。
type Set[T any] struct {
	ctx *Context
	def *mapping.TypeDefinition
	typ reflect.Type
}

// NewSet 解析 T 的映射；T 不可跟踪（没有标识等）时返回映射错误。
func NewSet[T any](c *Context) (*Set[T], error) {
	def, err := mapping.DefinitionOf[T](c.registry)
	if err != nil {
		return nil, err
	}
	return &Set[T]{ctx: c, def: def, typ: def.Type()}, nil
}

func (s *Set[T]) Definition() *mapping.TypeDefinition {
	return s.def
}

// Add 标记实体为待插入。标识为空时按生成策略补全，租户字段为空时填入上下文租户。
func (s *Set[T]) Add(entity *T) error {
	if err := s.prepareNew(entity); err != nil {
		return err
	}
	_, err := s.ctx.tracker.SetEntryState(entity, tracking.Added)
	return err
}

func (s *Set[T]) AddRange(entities ...*T) error {
	for _, e := range entities {
		if err := s.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Update 标记实体为待替换。对尚未保存的 Added 实体不起作用。
func (s *Set[T]) Update(entity *T) error {
	if err := s.checkEntity(entity); err != nil {
		return err
	}
	_, err := s.ctx.tracker.SetEntryState(entity, tracking.Updated)
	return err
}

func (s *Set[T]) UpdateRange(entities ...*T) error {
	for _, e := range entities {
		if err := s.Update(e); err != nil {
			return err
		}
	}
	return nil
}

// Remove 标记实体为待删除；实体还没保存过时直接取消插入。
func (s *Set[T]) Remove(entity *T) error {
	if err := s.checkEntity(entity); err != nil {
		return err
	}
	_, err := s.ctx.tracker.SetEntryState(entity, tracking.Deleted)
	return err
}

func (s *Set[T]) RemoveRange(entities ...*T) error {
	for _, e := range entities {
		if err := s.Remove(e); err != nil {
			return err
		}
	}
	return nil
}

// RemoveWhere 暂存一个按过滤条件的批量删除，保存时生成 DeleteMany。
// 过滤条件是驱动原生的文档（bson.D / bson.M），不能为空。
func (s *Set[T]) RemoveWhere(filter any) error {
	if filter == nil {
		return dberr.InvalidOperation(s.def.Name(), nil, "remove range requires a filter")
	}
	seq := s.ctx.tracker.NextSequence()
	s.ctx.stage(commands.NewRemoveRangeCommand(s.typ, filter, s.ctx.tenantID, seq))
	return nil
}

// RemoveByID 按标识删除。实体已被跟踪时走跟踪器，否则暂存一个按 id 删除的命令。
func (s *Set[T]) RemoveByID(id any) error {
	e, err := s.ctx.tracker.GetEntryByID(s.typ, id)
	if err != nil {
		return err
	}
	if e != nil {
		_, err := s.ctx.tracker.SetEntryState(e.Entity(), tracking.Deleted)
		return err
	}
	normalized, err := s.def.NormalizeID(id)
	if err != nil {
		return err
	}
	seq := s.ctx.tracker.NextSequence()
	s.ctx.stage(commands.NewRemoveByIDCommand(s.typ, normalized, s.ctx.tenantID, seq))
	return nil
}

// Find 先查跟踪器（未保存的 Added 实体也能找到，Deleted 视为不存在），再查存储。
// 从存储读到的实体以 NoChanges 纳入跟踪；找不到返回 nil, nil。
func (s *Set[T]) Find(ctx context.Context, id any) (*T, error) {
	e, err := s.ctx.tracker.GetEntryByID(s.typ, id)
	if err != nil {
		return nil, err
	}
	if e != nil {
		if e.State() == tracking.Deleted {
			return nil, nil
		}
		return e.Entity().(*T), nil
	}

	filter, err := s.def.CreateIDFilter(id, s.ctx.tenantID)
	if err != nil {
		return nil, err
	}
	found, err := s.query(ctx, OpFind, filter, 1, true)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Where 查询存储并跟踪结果。已跟踪的实体返回跟踪中的实例，不会被存储里的旧值覆盖。
func (s *Set[T]) Where(ctx context.Context, filter any) ([]*T, error) {
	return s.query(ctx, OpQuery, filter, 0, true)
}

// FirstOrDefault 返回第一个匹配的实体，没有匹配返回 nil。
func (s *Set[T]) FirstOrDefault(ctx context.Context, filter any) (*T, error) {
	found, err := s.query(ctx, OpQuery, filter, 1, true)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Any 只读存储，未保存的变更不可见。
func (s *Set[T]) Any(ctx context.Context, filter any) (bool, error) {
	found, err := s.query(ctx, OpQuery, filter, 1, false)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (s *Set[T]) Count(ctx context.Context, filter any) (int64, error) {
	if s.ctx.store == nil {
		return 0, errx.ErrUnavailable.WithCause(errNoStore)
	}
	n, err := s.ctx.store.Count(ctx, s.def.Collection(), s.scoped(filter))
	if err != nil {
		logx.ReportSysErrorWithLoggerContext(ctx, s.ctx.logger, logx.NewSysLog(OpQuery, err),
			zap.String("collection", s.def.Collection()))
		return 0, err
	}
	return n, nil
}

func (s *Set[T]) scoped(filter any) any {
	return mapping.And(filter, s.def.TenantFilter(s.ctx.tenantID))
}

func (s *Set[T]) query(ctx context.Context, op string, filter any, limit int64, track bool) ([]*T, error) {
	if s.ctx.store == nil {
		return nil, errx.ErrUnavailable.WithCause(errNoStore)
	}
	raws, err := s.ctx.store.Find(ctx, s.def.Collection(), s.scoped(filter), limit)
	if err != nil {
		logx.ReportSysErrorWithLoggerContext(ctx, s.ctx.logger, logx.NewSysLog(op, err),
			zap.String("collection", s.def.Collection()))
		return nil, err
	}
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		entity, err := s.materialize(raw, track)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (s *Set[T]) materialize(raw bson.Raw, track bool) (*T, error) {
	entity := new(T)
	if err := s.ctx.codec.Decode(raw, entity); err != nil {
		return nil, err
	}
	if !track {
		return entity, nil
	}
	if e := s.ctx.tracker.GetEntry(entity); e != nil {
		return e.Entity().(*T), nil
	}
	if _, err := s.ctx.tracker.SetEntryState(entity, tracking.NoChanges); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Set[T]) prepareNew(entity *T) error {
	if entity == nil {
		return errx.ErrInvalidArgument.WithData("type", s.def.Name()).WithCause(errors.New("entity is nil"))
	}
	if s.def.IsTenantScoped() && s.ctx.tenantID != "" && s.def.TenantValue(entity) == "" {
		if err := s.def.SetTenant(entity, s.ctx.tenantID); err != nil {
			return err
		}
	}
	if err := s.checkEntity(entity); err != nil {
		return err
	}
	_, err := s.def.EnsureID(entity)
	return err
}

// checkEntity 拒绝空实体和租户与上下文不一致的实体。
func (s *Set[T]) checkEntity(entity *T) error {
	if entity == nil {
		return errx.ErrInvalidArgument.WithData("type", s.def.Name()).WithCause(errors.New("entity is nil"))
	}
	if !s.def.IsTenantScoped() || s.ctx.tenantID == "" {
		return nil
	}
	if tenant := s.def.TenantValue(entity); tenant != s.ctx.tenantID {
		id, _ := s.def.IDValue(entity)
		return dberr.InvalidOperation(s.def.Name(), id, "entity tenant %q does not match context tenant %q", tenant, s.ctx.tenantID)
	}
	return nil
}
