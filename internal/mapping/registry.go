package mapping

import (
	"errors"
	"reflect"
	"sync"

	"DocTrack/internal/shared/dberr"
)

// Registry 缓存每个类型的映射定义。
//
// 定义在第一次访问时构建，之后进程内不变；并发首次访问同一类型只会产生一个定义。
// AddMappingProcessor 只影响尚未解析的类型，应在任何实体被映射之前调用。
type Registry struct {
	mu         sync.RWMutex
	processors []Processor
	defs       map[reflect.Type]*TypeDefinition
	resolving  map[reflect.Type]struct{}
	order      []reflect.Type
}

// NewRegistry 创建注册表；不传处理器时使用 DefaultProcessors。
func NewRegistry(processors ...Processor) *Registry {
	if len(processors) == 0 {
		processors = DefaultProcessors()
	}
	return &Registry{
		processors: append([]Processor(nil), processors...),
		defs:       make(map[reflect.Type]*TypeDefinition),
		resolving:  make(map[reflect.Type]struct{}),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default 返回进程级注册表。
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// AddMappingProcessor 在处理器链末尾追加处理器。
func (r *Registry) AddMappingProcessor(p Processor) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.processors = append(r.processors, p)
	r.mu.Unlock()
}

// RegisterType 解析并缓存类型定义，不要求类型有标识字段（嵌套类型走这里）。
func (r *Registry) RegisterType(t reflect.Type) (*TypeDefinition, error) {
	t, err := normalizeType(t)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	def, ok := r.defs[t]
	r.mu.RUnlock()
	if ok {
		return def, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	def, err = r.resolveLocked(t)
	if err != nil {
		return nil, err
	}
	if def == nil {
		// 只有在处理器链内部递归时才会遇到“解析中”，这里不可能出现。
		return nil, dberr.Mapping(typeName(t), "type is still being resolved")
	}
	return def, nil
}

// GetOrCreateDefinition 返回可被追踪的类型定义；类型没有标识字段时返回映射错误。
func (r *Registry) GetOrCreateDefinition(t reflect.Type) (*TypeDefinition, error) {
	def, err := r.RegisterType(t)
	if err != nil {
		return nil, err
	}
	if !def.HasID() {
		return nil, dberr.Mapping(def.Name(), "no identifier field; tag one field with `mongo:\",id\"` or name it ID")
	}
	return def, nil
}

// DefinitionOf 是 GetOrCreateDefinition 的泛型便捷写法。
func DefinitionOf[T any](r *Registry) (*TypeDefinition, error) {
	return r.GetOrCreateDefinition(reflect.TypeOf((*T)(nil)).Elem())
}

func (r *Registry) IsRegistered(t reflect.Type) bool {
	t, err := normalizeType(t)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[t]
	return ok
}

// Types 按注册完成的先后顺序返回所有已注册类型。
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}

// resolveLocked 要求调用方持有写锁。类型正在解析中时返回 (nil, nil)。
func (r *Registry) resolveLocked(t reflect.Type) (*TypeDefinition, error) {
	if def, ok := r.defs[t]; ok {
		return def, nil
	}
	if _, ok := r.resolving[t]; ok {
		return nil, nil
	}
	r.resolving[t] = struct{}{}
	defer delete(r.resolving, t)

	b := newBuilder(r, t)
	for _, p := range r.processors {
		if err := p.ApplyMapping(b); err != nil {
			return nil, asMappingError(t, err)
		}
	}
	def, err := b.build()
	if err != nil {
		return nil, err
	}
	r.defs[t] = def
	r.order = append(r.order, t)
	return def, nil
}

func asMappingError(t reflect.Type, err error) error {
	var e *dberr.Error
	if errors.As(err, &e) {
		return err
	}
	return dberr.Mapping(typeName(t), "mapping processor failed: %v", err)
}

func normalizeType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, dberr.Mapping("<nil>", "nil type")
	}
	t = derefType(t)
	if t.Kind() != reflect.Struct {
		return nil, dberr.Mapping(typeName(t), "only struct types can be mapped, got %s", t.Kind())
	}
	return t, nil
}
