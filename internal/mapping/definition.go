// Package mapping 负责把 Go 结构体解析成文档映射定义（TypeDefinition）。
//
// 定义在类型第一次使用时由处理器链构建，之后进程内缓存、不再变化。
// 结构体标签使用 `mongo:"name,opt..."`：
//   - `mongo:"-"`：字段不参与映射
//   - name：文档字段名，缺省为 Go 字段名
//   - id：标识字段（缺省识别名为 ID / Id 的字段），序列化为 _id
//   - client：标识由调用方提供，不自动生成
//   - snowflake：int64 标识用雪花算法生成
//   - tenant：租户字段（缺省识别名为 TenantID / TenantId 的 string 字段）
package mapping

import (
	"reflect"
)

// IDElementName 是存储原生的主键字段名。
const IDElementName = "_id"

// FieldKind 区分标量字段和需要递归映射的嵌套字段。
type FieldKind uint8

const (
	KindScalar FieldKind = iota
	// KindNested 是结构体（或结构体指针）字段。
	KindNested
	// KindNestedCollection 是元素为结构体的切片/数组字段。
	KindNestedCollection
)

func (k FieldKind) String() string {
	switch k {
	case KindNested:
		return "nested"
	case KindNestedCollection:
		return "nested_collection"
	default:
		return "scalar"
	}
}

// IDGeneration 描述标识的来源。
type IDGeneration uint8

const (
	// GenerateNone 表示调用方提供标识。
	GenerateNone IDGeneration = iota
	GenerateObjectID
	GenerateUUID
	GenerateSnowflake
)

func (g IDGeneration) String() string {
	switch g {
	case GenerateObjectID:
		return "object_id"
	case GenerateUUID:
		return "uuid"
	case GenerateSnowflake:
		return "snowflake"
	default:
		return "client"
	}
}

// FieldDefinition 描述一个被映射的字段。
type FieldDefinition struct {
	Name        string
	ElementName string
	Index       []int
	Type        reflect.Type
	Kind        FieldKind
	// NestedType 是去掉指针后的嵌套结构体类型，只对嵌套字段有效。
	NestedType reflect.Type
	Nullable   bool
	IsID       bool
	IsTenant   bool

	opts tagOptions
}

// TypeDefinition 是一个类型的完整映射结果，构建完成后只读。
type TypeDefinition struct {
	typ        reflect.Type
	collection string
	fields     []FieldDefinition
	byElement  map[string]int
	idIndex    int
	tenant     int
	generation IDGeneration
}

func (d *TypeDefinition) Type() reflect.Type {
	return d.typ
}

// Name 返回用于日志和错误信息的类型名。
func (d *TypeDefinition) Name() string {
	return typeName(d.typ)
}

func (d *TypeDefinition) Collection() string {
	return d.collection
}

// Fields 返回字段定义的拷贝，顺序与声明顺序一致。
func (d *TypeDefinition) Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d *TypeDefinition) HasID() bool {
	return d.idIndex >= 0
}

func (d *TypeDefinition) ID() (FieldDefinition, bool) {
	if d.idIndex < 0 {
		return FieldDefinition{}, false
	}
	return d.fields[d.idIndex], true
}

func (d *TypeDefinition) Generation() IDGeneration {
	return d.generation
}

func (d *TypeDefinition) IsTenantScoped() bool {
	return d.tenant >= 0
}

func (d *TypeDefinition) Tenant() (FieldDefinition, bool) {
	if d.tenant < 0 {
		return FieldDefinition{}, false
	}
	return d.fields[d.tenant], true
}

// Field 按 Go 字段名查找。
func (d *TypeDefinition) Field(name string) (FieldDefinition, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
