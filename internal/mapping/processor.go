package mapping

import (
	"reflect"
	"strings"
	"time"

	"DocTrack/internal/shared/dberr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const tagKey = "mongo"

// Processor 是映射处理器：在前面处理器的结果上增改字段定义。
// 处理器按注册顺序执行，顺序本身是约定的一部分。
type Processor interface {
	ApplyMapping(b *Builder) error
}

// ProcessorFunc 让普通函数实现 Processor。
type ProcessorFunc func(b *Builder) error

func (f ProcessorFunc) ApplyMapping(b *Builder) error {
	return f(b)
}

// DefaultProcessors 返回默认处理器链：集合名 → 属性 → 标识 → 租户 → 嵌套类型。
func DefaultProcessors() []Processor {
	return []Processor{
		CollectionProcessor{},
		PropertyProcessor{},
		IdentifierProcessor{},
		TenantProcessor{},
		NestedTypeProcessor{},
	}
}

// Builder 是一个类型在处理器链中的可变中间态。
type Builder struct {
	typ      reflect.Type
	registry *Registry

	Collection string
	Fields     []FieldDefinition
	Generation IDGeneration
}

func newBuilder(r *Registry, t reflect.Type) *Builder {
	return &Builder{typ: t, registry: r}
}

func (b *Builder) Type() reflect.Type {
	return b.typ
}

// FieldIndex 返回 Go 字段名对应的下标，不存在返回 -1。
func (b *Builder) FieldIndex(name string) int {
	for i := range b.Fields {
		if b.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (b *Builder) build() (*TypeDefinition, error) {
	name := typeName(b.typ)
	def := &TypeDefinition{
		typ:        b.typ,
		collection: b.Collection,
		fields:     make([]FieldDefinition, len(b.Fields)),
		byElement:  make(map[string]int, len(b.Fields)),
		idIndex:    -1,
		tenant:     -1,
		generation: b.Generation,
	}
	if def.collection == "" {
		def.collection = b.typ.Name()
	}
	copy(def.fields, b.Fields)

	for i, f := range def.fields {
		if f.ElementName == "" {
			return nil, dberr.Mapping(name, "field %s has empty element name", f.Name)
		}
		if prev, ok := def.byElement[f.ElementName]; ok {
			return nil, dberr.Mapping(name, "fields %s and %s both map to element %q",
				def.fields[prev].Name, f.Name, f.ElementName)
		}
		def.byElement[f.ElementName] = i
		if f.IsID {
			if def.idIndex >= 0 {
				return nil, dberr.Mapping(name, "more than one identifier field (%s, %s)", def.fields[def.idIndex].Name, f.Name)
			}
			def.idIndex = i
		}
		if f.IsTenant {
			if def.tenant >= 0 {
				return nil, dberr.Mapping(name, "more than one tenant field (%s, %s)", def.fields[def.tenant].Name, f.Name)
			}
			def.tenant = i
		}
	}
	if def.idIndex < 0 {
		def.generation = GenerateNone
	}
	return def, nil
}

// CollectionNamer 由实体实现以覆盖集合名（缺省为类型名）。
type CollectionNamer interface {
	CollectionName() string
}

var collectionNamerType = reflect.TypeOf((*CollectionNamer)(nil)).Elem()

// CollectionProcessor 解析集合名。
type CollectionProcessor struct{}

func (CollectionProcessor) ApplyMapping(b *Builder) error {
	if reflect.PointerTo(b.typ).Implements(collectionNamerType) {
		namer := reflect.New(b.typ).Interface().(CollectionNamer)
		if name := namer.CollectionName(); name != "" {
			b.Collection = name
			return nil
		}
	}
	b.Collection = b.typ.Name()
	return nil
}

// PropertyProcessor 枚举导出字段，应用 `mongo` 标签上的字段名/忽略规则，并标记嵌套字段。
// 匿名内嵌的结构体字段会被展开。
type PropertyProcessor struct{}

func (PropertyProcessor) ApplyMapping(b *Builder) error {
	fields, err := collectFields(b.typ, nil)
	if err != nil {
		return err
	}
	b.Fields = append(b.Fields, fields...)
	return nil
}

func collectFields(t reflect.Type, prefix []int) ([]FieldDefinition, error) {
	var out []FieldDefinition
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, opts := parseTag(sf.Tag.Get(tagKey))
		if name == "-" {
			continue
		}
		index := make([]int, 0, len(prefix)+1)
		index = append(index, prefix...)
		index = append(index, i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && name == "" && !isScalarStruct(sf.Type) {
			inner, err := collectFields(sf.Type, index)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		kind, nested := classify(sf.Type)
		element := sf.Name
		if name != "" {
			element = name
		}
		out = append(out, FieldDefinition{
			Name:        sf.Name,
			ElementName: element,
			Index:       index,
			Type:        sf.Type,
			Kind:        kind,
			NestedType:  nested,
			Nullable:    isNullable(sf.Type),
			opts:        opts,
		})
	}
	return out, nil
}

// IdentifierProcessor 选出标识字段并决定标识生成方式。
type IdentifierProcessor struct{}

func (IdentifierProcessor) ApplyMapping(b *Builder) error {
	idx := -1
	for i := range b.Fields {
		if b.Fields[i].opts.has("id") {
			if idx >= 0 {
				return dberr.Mapping(typeName(b.typ), "more than one field tagged as id (%s, %s)", b.Fields[idx].Name, b.Fields[i].Name)
			}
			idx = i
		}
	}
	if idx < 0 {
		for _, candidate := range []string{"ID", "Id"} {
			if i := b.FieldIndex(candidate); i >= 0 {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil
	}

	f := &b.Fields[idx]
	if f.Kind != KindScalar {
		return dberr.Mapping(typeName(b.typ), "identifier field %s must be a scalar", f.Name)
	}
	f.IsID = true
	f.ElementName = IDElementName
	b.Generation = idGenerationFor(*f)
	return nil
}

func idGenerationFor(f FieldDefinition) IDGeneration {
	if f.opts.has("client") {
		return GenerateNone
	}
	switch {
	case f.Type == objectIDType:
		return GenerateObjectID
	case f.Type == uuidType:
		return GenerateUUID
	case f.Type.Kind() == reflect.String:
		return GenerateObjectID
	case f.Type.Kind() == reflect.Int64 && f.opts.has("snowflake"):
		return GenerateSnowflake
	}
	return GenerateNone
}

// TenantProcessor 标记租户字段。
type TenantProcessor struct{}

func (TenantProcessor) ApplyMapping(b *Builder) error {
	idx := -1
	for i := range b.Fields {
		if b.Fields[i].opts.has("tenant") {
			idx = i
			break
		}
	}
	if idx < 0 {
		for _, candidate := range []string{"TenantID", "TenantId"} {
			if i := b.FieldIndex(candidate); i >= 0 {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil
	}
	f := &b.Fields[idx]
	if f.Type.Kind() != reflect.String {
		return dberr.Mapping(typeName(b.typ), "tenant field %s must be a string", f.Name)
	}
	if f.IsID {
		return dberr.Mapping(typeName(b.typ), "field %s cannot be both identifier and tenant", f.Name)
	}
	f.IsTenant = true
	return nil
}

type tagOptions []string

func (o tagOptions) has(opt string) bool {
	for _, v := range o {
		if v == opt {
			return true
		}
	}
	return false
}

func parseTag(tag string) (string, tagOptions) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	var opts tagOptions
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			opts = append(opts, p)
		}
	}
	return name, opts
}

var (
	objectIDType   = reflect.TypeOf(bson.ObjectID{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	timeType       = reflect.TypeOf(time.Time{})
	decimal128Type = reflect.TypeOf(bson.Decimal128{})
	timestampType  = reflect.TypeOf(bson.Timestamp{})
	binaryType     = reflect.TypeOf(bson.Binary{})
	regexType      = reflect.TypeOf(bson.Regex{})
	dateTimeType   = reflect.TypeOf(bson.DateTime(0))

	docType     = reflect.TypeOf(bson.D{})
	elementType = reflect.TypeOf(bson.E{})
	docMapType  = reflect.TypeOf(bson.M{})
	arrayType   = reflect.TypeOf(bson.A{})
	rawType     = reflect.TypeOf(bson.Raw{})
)

// 这些结构体由驱动当作单个值编码，不做嵌套映射。
func isScalarStruct(t reflect.Type) bool {
	switch t {
	case timeType, decimal128Type, timestampType, binaryType, regexType, elementType:
		return true
	}
	return false
}

// isDriverDocument 表示驱动自带的文档/数组类型，字段按原样作为子文档存储。
func isDriverDocument(t reflect.Type) bool {
	switch t {
	case docType, elementType, docMapType, arrayType, rawType:
		return true
	}
	return false
}

func classify(t reflect.Type) (FieldKind, reflect.Type) {
	base := derefType(t)
	if isDriverDocument(base) {
		return KindScalar, nil
	}
	if base.Kind() == reflect.Struct && !isScalarStruct(base) {
		return KindNested, base
	}
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		elem := derefType(t.Elem())
		if elem.Kind() == reflect.Struct && !isScalarStruct(elem) {
			return KindNestedCollection, elem
		}
	}
	return KindScalar, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}
