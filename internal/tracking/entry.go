package tracking

import (
	"reflect"

	"DocTrack/internal/mapping"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Entry 包装一个被跟踪的实体实例。由 Tracker 独占，调用方只读。
type Entry struct {
	entity   any
	def      *mapping.TypeDefinition
	state    EntityState
	snapshot bson.Raw
	seq      uint64
	attached bool

	// key 是条目在标识索引中的键，标识为空或不可比较时为 nil。
	key *idKey
}

// Entity 返回被跟踪的实体指针。
func (e *Entry) Entity() any {
	return e.entity
}

func (e *Entry) Type() reflect.Type {
	return e.def.Type()
}

func (e *Entry) Definition() *mapping.TypeDefinition {
	return e.def
}

func (e *Entry) State() EntityState {
	return e.state
}

// Snapshot 是最近一次干净点的文档；Added 或未读回的实体没有快照。
func (e *Entry) Snapshot() bson.Raw {
	return e.snapshot
}

// Sequence 是最近一次由调用方驱动的状态变化序号，用于保持提交顺序。
func (e *Entry) Sequence() uint64 {
	return e.seq
}

// ID 返回实体当前的标识及其是否已赋值。
func (e *Entry) ID() (any, bool) {
	return e.def.IDValue(e.entity)
}

// Attached 表示条目仍在跟踪中。
func (e *Entry) Attached() bool {
	return e.attached
}

func (e *Entry) hasID(id any) bool {
	cur, ok := e.ID()
	return ok && reflect.DeepEqual(cur, id)
}
