package mapping

import (
	"reflect"

	"DocTrack/internal/shared/dberr"
	"DocTrack/internal/shared/idgen"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDValue 读取实体标识；第二个返回值表示标识是否已赋值（非零值）。
func (d *TypeDefinition) IDValue(entity any) (any, bool) {
	f, ok := d.ID()
	if !ok {
		return nil, false
	}
	v, err := structValue(entity)
	if err != nil || v.Type() != d.typ {
		return nil, false
	}
	fv := v.FieldByIndex(f.Index)
	if fv.IsZero() {
		return fv.Interface(), false
	}
	return fv.Interface(), true
}

// SetID 写入实体标识，值会按标识字段类型转换。
func (d *TypeDefinition) SetID(entity any, id any) error {
	f, ok := d.ID()
	if !ok {
		return dberr.Mapping(d.Name(), "no identifier field")
	}
	v, err := settableStruct(entity)
	if err != nil {
		return err
	}
	converted, err := d.convertID(id)
	if err != nil {
		return err
	}
	v.FieldByIndex(f.Index).Set(reflect.ValueOf(converted))
	return nil
}

// EnsureID 在标识为零值时按生成策略补一个，返回最终的标识。
// 标识由调用方提供且为零值时返回非法操作错误。
func (d *TypeDefinition) EnsureID(entity any) (any, error) {
	if id, ok := d.IDValue(entity); ok {
		return id, nil
	}
	f, _ := d.ID()
	var next any
	switch d.generation {
	case GenerateObjectID:
		oid := bson.NewObjectID()
		if f.Type.Kind() == reflect.String {
			next = oid.Hex()
		} else {
			next = oid
		}
	case GenerateUUID:
		next = uuid.New()
	case GenerateSnowflake:
		next = idgen.NextSnowflakeID()
	default:
		return nil, dberr.InvalidOperation(d.Name(), nil, "entity has no identifier and %s is client supplied", f.Name)
	}
	if err := d.SetID(entity, next); err != nil {
		return nil, err
	}
	id, _ := d.IDValue(entity)
	return id, nil
}

// TenantValue 读取租户字段，类型没有租户字段时返回空串。
func (d *TypeDefinition) TenantValue(entity any) string {
	f, ok := d.Tenant()
	if !ok {
		return ""
	}
	v, err := structValue(entity)
	if err != nil || v.Type() != d.typ {
		return ""
	}
	return v.FieldByIndex(f.Index).String()
}

func (d *TypeDefinition) SetTenant(entity any, tenantID string) error {
	f, ok := d.Tenant()
	if !ok {
		return dberr.Mapping(d.Name(), "no tenant field")
	}
	v, err := settableStruct(entity)
	if err != nil {
		return err
	}
	v.FieldByIndex(f.Index).SetString(tenantID)
	return nil
}

// NormalizeID 把调用方给的标识转换成标识字段的类型；nil 或零值返回非法操作错误。
func (d *TypeDefinition) NormalizeID(id any) (any, error) {
	if !d.HasID() {
		return nil, dberr.Mapping(d.Name(), "no identifier field")
	}
	if isZeroID(id) {
		return nil, dberr.InvalidOperation(d.Name(), nil, "identifier is empty")
	}
	return d.convertID(id)
}

// convertID 把调用方给的标识转换成标识字段的类型，例如 hex 字符串 → ObjectID、int → int64。
func (d *TypeDefinition) convertID(id any) (any, error) {
	f, _ := d.ID()
	if id == nil {
		return nil, dberr.InvalidOperation(d.Name(), nil, "identifier is nil")
	}
	rv := reflect.ValueOf(id)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, dberr.InvalidOperation(d.Name(), nil, "identifier is nil")
		}
		rv = rv.Elem()
	}
	if rv.Type() == f.Type {
		return rv.Interface(), nil
	}
	switch f.Type {
	case objectIDType:
		if s, ok := rv.Interface().(string); ok {
			oid, err := bson.ObjectIDFromHex(s)
			if err != nil {
				return nil, dberr.InvalidOperation(d.Name(), s, "identifier is not a valid ObjectID")
			}
			return oid, nil
		}
	case uuidType:
		if s, ok := rv.Interface().(string); ok {
			u, err := uuid.Parse(s)
			if err != nil {
				return nil, dberr.InvalidOperation(d.Name(), s, "identifier is not a valid UUID")
			}
			return u, nil
		}
	}
	if isNumericKind(rv.Kind()) && isNumericKind(f.Type.Kind()) {
		return rv.Convert(f.Type).Interface(), nil
	}
	if rv.Kind() == f.Type.Kind() && rv.Type().ConvertibleTo(f.Type) {
		return rv.Convert(f.Type).Interface(), nil
	}
	return nil, dberr.InvalidOperation(d.Name(), id, "identifier of type %T does not match %s", id, f.Type)
}

func settableStruct(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, dberr.InvalidOperation(typeName(reflect.TypeOf(entity)), nil, "entity must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, dberr.InvalidOperation(typeName(reflect.TypeOf(entity)), nil, "entity must point to a struct")
	}
	return v, nil
}
