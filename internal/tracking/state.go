// Package tracking 维护一个工作单元内被跟踪实体的状态。
//
// 每个实体对应一个 Entry，记录最近一次干净点的快照（编码后的文档）和当前状态。
// 状态只通过 Tracker 迁移；直接改实体字段不会改变状态，直到调用 Update 或 DetectChanges。
//
// 迁移规则：
//
//	NoChanges --字段与快照不同--> Updated
//	Updated   --字段与快照相同--> NoChanges
//	Added     --保存成功------> NoChanges
//	Deleted   --保存成功------> 移出跟踪
//	Added     --Remove-------> 移出跟踪（取消待插入）
package tracking

// EntityState 是实体在当前工作单元里的状态。
type EntityState uint8

const (
	NoChanges EntityState = iota
	Added
	Updated
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case NoChanges:
		return "NoChanges"
	case Added:
		return "Added"
	case Updated:
		return "Updated"
	case Deleted:
		return "Deleted"
	}
	return "Unknown"
}

// NeedsWrite 表示该状态在保存时会产生写操作。
func (s EntityState) NeedsWrite() bool {
	return s == Added || s == Updated || s == Deleted
}
