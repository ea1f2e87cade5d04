package mapping

import (
	"reflect"

	"DocTrack/internal/shared/dberr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CreateIDFilter 构造按标识相等的过滤条件；类型带租户字段且 tenantID 非空时再 AND 上租户相等。
// 标识为 nil 或零值时返回非法操作错误：没有持久化标识的实体无法按 id 定位。
func (d *TypeDefinition) CreateIDFilter(id any, tenantID string) (bson.D, error) {
	if !d.HasID() {
		return nil, dberr.Mapping(d.Name(), "no identifier field")
	}
	if isZeroID(id) {
		return nil, dberr.InvalidOperation(d.Name(), nil, "cannot build id filter for an entity without identifier")
	}
	converted, err := d.convertID(id)
	if err != nil {
		return nil, err
	}
	idFilter := bson.D{{Key: IDElementName, Value: encodeIDValue(converted)}}
	tenant := d.TenantFilter(tenantID)
	if tenant == nil {
		return idFilter, nil
	}
	return bson.D{{Key: "$and", Value: bson.A{idFilter, tenant}}}, nil
}

// TenantFilter 返回租户相等条件；类型不分租户或 tenantID 为空时返回 nil。
func (d *TypeDefinition) TenantFilter(tenantID string) bson.D {
	f, ok := d.Tenant()
	if !ok || tenantID == "" {
		return nil
	}
	return bson.D{{Key: f.ElementName, Value: tenantID}}
}

// And 组合多个过滤条件，忽略 nil；只剩一个时原样返回，全为空时返回匹配全部的空文档。
func And(filters ...any) any {
	parts := make(bson.A, 0, len(filters))
	for _, f := range filters {
		if isEmptyFilter(f) {
			continue
		}
		parts = append(parts, f)
	}
	switch len(parts) {
	case 0:
		return bson.D{}
	case 1:
		return parts[0]
	}
	return bson.D{{Key: "$and", Value: parts}}
}

func isEmptyFilter(f any) bool {
	switch x := f.(type) {
	case nil:
		return true
	case bson.D:
		return len(x) == 0
	case bson.M:
		return len(x) == 0
	}
	return false
}

func encodeIDValue(id any) any {
	if u, ok := id.(uuid.UUID); ok {
		return u.String()
	}
	return id
}

func isZeroID(id any) bool {
	if id == nil {
		return true
	}
	rv := reflect.ValueOf(id)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}
