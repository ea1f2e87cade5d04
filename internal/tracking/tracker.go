package tracking

import (
	"reflect"
	"sort"

	"DocTrack/internal/mapping"
	"DocTrack/internal/shared/dberr"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Tracker 是一个工作单元的变更跟踪器。不是并发安全的，归属于单个上下文。
//
// 按实例指针和按“类型 + 标识”的查找都是 O(1)。标识在纳入跟踪后才被赋值的条目
// （例如保存时才生成 ObjectID）先放在 unkeyed 里，第一次按标识命中时再建索引。
type Tracker struct {
	registry *mapping.Registry
	codec    *mapping.Codec

	// entries 保留纳入跟踪的顺序；移出的条目延迟压缩，dead 记录其数量。
	entries  []*Entry
	dead     int
	byEntity map[any]*Entry
	byID     map[idKey]*Entry
	unkeyed  map[*Entry]struct{}
	seq      uint64
}

type idKey struct {
	def *mapping.TypeDefinition
	id  any
}

func NewTracker(registry *mapping.Registry, codec *mapping.Codec) *Tracker {
	if registry == nil {
		registry = mapping.Default()
	}
	if codec == nil {
		codec = mapping.NewCodec(registry)
	}
	return &Tracker{
		registry: registry,
		codec:    codec,
		byEntity: make(map[any]*Entry),
		byID:     make(map[idKey]*Entry),
		unkeyed:  make(map[*Entry]struct{}),
	}
}

func (t *Tracker) Registry() *mapping.Registry {
	return t.registry
}

func (t *Tracker) Codec() *mapping.Codec {
	return t.codec
}

// NextSequence 分配一个提交序号。暂存的删除命令与条目共用同一序列。
func (t *Tracker) NextSequence() uint64 {
	t.seq++
	return t.seq
}

// GetEntry 先按实例指针查找，再按“类型 + 已赋值的标识”查找；未跟踪返回 nil。
func (t *Tracker) GetEntry(entity any) *Entry {
	if !isStructPointer(entity) {
		return nil
	}
	if e, ok := t.byEntity[entity]; ok {
		return e
	}
	def, err := t.registry.GetOrCreateDefinition(reflect.TypeOf(entity))
	if err != nil {
		return nil
	}
	id, ok := def.IDValue(entity)
	if !ok {
		return nil
	}
	return t.findByID(def, id)
}

// GetEntryByID 按类型和标识查找条目，标识会先转换成字段类型。
func (t *Tracker) GetEntryByID(typ reflect.Type, id any) (*Entry, error) {
	def, err := t.registry.GetOrCreateDefinition(typ)
	if err != nil {
		return nil, err
	}
	normalized, err := def.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	return t.findByID(def, normalized), nil
}

func (t *Tracker) findByID(def *mapping.TypeDefinition, id any) *Entry {
	if indexable(id) {
		if e, ok := t.byID[idKey{def: def, id: id}]; ok {
			if e.hasID(id) {
				return e
			}
			// 实体的标识字段被改过
			t.index(e)
		}
	}
	for e := range t.unkeyed {
		if e.def == def && e.hasID(id) {
			t.index(e)
			return e
		}
	}
	return nil
}

// index 按条目当前的标识重建索引键。
func (t *Tracker) index(e *Entry) {
	t.unindex(e)
	id, ok := e.def.IDValue(e.entity)
	if !ok || !indexable(id) {
		t.unkeyed[e] = struct{}{}
		return
	}
	k := idKey{def: e.def, id: id}
	t.byID[k] = e
	e.key = &k
}

func (t *Tracker) unindex(e *Entry) {
	if e.key != nil && t.byID[*e.key] == e {
		delete(t.byID, *e.key)
	}
	e.key = nil
	delete(t.unkeyed, e)
}

func indexable(id any) bool {
	return id != nil && reflect.TypeOf(id).Comparable()
}

// SetEntryState 把实体置为指定状态，未跟踪的实体会被纳入跟踪。
//
// 同一标识换了实例时以新实例为准。对 Added 条目设置 Deleted 等于取消插入：条目直接移出跟踪。
// 对已有快照（确认已持久化）的条目设置 Added 会按 Updated 处理，避免重复插入。
func (t *Tracker) SetEntryState(entity any, state EntityState) (*Entry, error) {
	def, err := t.definitionFor(entity)
	if err != nil {
		return nil, err
	}
	e := t.GetEntry(entity)
	if e == nil {
		e = &Entry{entity: entity, def: def, state: state}
		if err := t.transition(e, state); err != nil {
			return nil, err
		}
		t.attach(e)
		return e, nil
	}
	if e.entity != entity {
		delete(t.byEntity, e.entity)
		e.entity = entity
		t.byEntity[entity] = e
	}
	if err := t.transition(e, state); err != nil {
		return e, err
	}
	if e.attached {
		t.index(e)
	}
	return e, nil
}

func (t *Tracker) transition(e *Entry, state EntityState) error {
	switch state {
	case NoChanges:
		raw, err := t.codec.Marshal(e.entity)
		if err != nil {
			return err
		}
		e.snapshot = raw
		e.state = NoChanges
		return nil
	case Added:
		if e.attached && e.snapshot != nil {
			state = Updated
		}
	case Updated:
		if e.attached && e.state == Added {
			return nil
		}
	case Deleted:
		if e.attached && e.state == Added {
			t.detach(e)
			e.state = Deleted
			return nil
		}
	default:
		return dberr.InvalidOperation(e.def.Name(), nil, "unknown entity state %d", state)
	}
	e.state = state
	e.seq = t.NextSequence()
	return nil
}

// Update 重新比较实体与快照，只在 NoChanges 与 Updated 之间迁移。
// Added 永远不会变成 Updated；没有快照的 Updated 保持不变。重复调用是幂等的。
func (t *Tracker) Update(e *Entry) error {
	if e == nil || !e.attached {
		return nil
	}
	t.index(e)
	if e.state != NoChanges && e.state != Updated {
		return nil
	}
	if e.snapshot == nil {
		return nil
	}
	changed, err := t.ChangedFields(e)
	if err != nil {
		return err
	}
	switch {
	case len(changed) > 0 && e.state == NoChanges:
		e.state = Updated
		e.seq = t.NextSequence()
	case len(changed) == 0 && e.state == Updated:
		e.state = NoChanges
	}
	return nil
}

// DetectChanges 对全部条目执行 Update。
func (t *Tracker) DetectChanges() error {
	for _, e := range t.live() {
		if err := t.Update(e); err != nil {
			return err
		}
	}
	return nil
}

// ChangedFields 返回与快照不同的文档字段名；没有快照时返回全部字段。
func (t *Tracker) ChangedFields(e *Entry) ([]string, error) {
	current, err := t.codec.Marshal(e.entity)
	if err != nil {
		return nil, err
	}
	before := e.snapshot
	if before == nil {
		before = emptyDocument
	}
	return diffDocuments(before, current)
}

var emptyDocument = func() bson.Raw {
	b, _ := bson.Marshal(bson.D{})
	return bson.Raw(b)
}()

// Entries 按纳入跟踪的顺序返回全部条目。
func (t *Tracker) Entries() []*Entry {
	return append([]*Entry(nil), t.live()...)
}

// PendingEntries 返回需要写库的条目，按提交序号排序。
func (t *Tracker) PendingEntries() []*Entry {
	var out []*Entry
	for _, e := range t.live() {
		if e.state.NeedsWrite() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (t *Tracker) HasChanges() bool {
	for _, e := range t.live() {
		if e.state.NeedsWrite() {
			return true
		}
	}
	return false
}

// Clear 在保存成功后调用：Added/Updated 刷新快照转为 NoChanges，Deleted 移出跟踪。
// 先编码全部快照，任何一个失败都不改动跟踪状态。
func (t *Tracker) Clear() error {
	snapshots := make(map[*Entry]bson.Raw)
	for _, e := range t.live() {
		if e.state == Added || e.state == Updated {
			raw, err := t.codec.Marshal(e.entity)
			if err != nil {
				return err
			}
			snapshots[e] = raw
		}
	}

	for _, e := range t.live() {
		if e.state == Deleted {
			t.drop(e)
			continue
		}
		if raw, ok := snapshots[e]; ok {
			e.snapshot = raw
			e.state = NoChanges
			// 插入时才生成的标识在这里进入索引
			t.index(e)
		}
	}
	t.compact()
	return nil
}

// Detach 把实体移出跟踪，不产生任何写操作。
func (t *Tracker) Detach(entity any) bool {
	e := t.GetEntry(entity)
	if e == nil {
		return false
	}
	t.detach(e)
	return true
}

func (t *Tracker) Len() int {
	return len(t.entries) - t.dead
}

func (t *Tracker) attach(e *Entry) {
	e.attached = true
	t.entries = append(t.entries, e)
	t.byEntity[e.entity] = e
	t.index(e)
}

func (t *Tracker) detach(e *Entry) {
	t.drop(e)
	if t.dead > len(t.entries)/2 {
		t.compact()
	}
}

// drop 移出条目但不压缩 entries，遍历 entries 时使用。
func (t *Tracker) drop(e *Entry) {
	if !e.attached {
		return
	}
	delete(t.byEntity, e.entity)
	t.unindex(e)
	e.attached = false
	t.dead++
}

// live 返回仍在跟踪中的条目，顺序与纳入跟踪的顺序一致。
func (t *Tracker) live() []*Entry {
	if t.dead == 0 {
		return t.entries
	}
	out := make([]*Entry, 0, len(t.entries)-t.dead)
	for _, e := range t.entries {
		if e.attached {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracker) compact() {
	if t.dead == 0 {
		return
	}
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.attached {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = nil
	}
	t.entries = kept
	t.dead = 0
}

func (t *Tracker) definitionFor(entity any) (*mapping.TypeDefinition, error) {
	if !isStructPointer(entity) {
		return nil, dberr.InvalidOperation(typeName(entity), nil, "entity must be a non-nil pointer to a struct")
	}
	return t.registry.GetOrCreateDefinition(reflect.TypeOf(entity))
}

func isStructPointer(entity any) bool {
	v := reflect.ValueOf(entity)
	return v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct
}

func typeName(entity any) string {
	if entity == nil {
		return "<nil>"
	}
	return reflect.TypeOf(entity).String()
}
