package mapping

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"DocTrack/internal/shared/dberr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Codec 按 TypeDefinition 的字段名映射在实体与文档之间转换。
//
// 编码结果是确定的：map 按 key 排序输出，uuid.UUID 输出为字符串，
// 所以同一实体两次编码得到相同字节，可以直接拿来做快照比较。
type Codec struct {
	registry *Registry
}

func NewCodec(r *Registry) *Codec {
	if r == nil {
		r = Default()
	}
	return &Codec{registry: r}
}

func (c *Codec) Registry() *Registry {
	return c.registry
}

// Encode 把实体（结构体或结构体指针）编码成有序文档。
func (c *Codec) Encode(entity any) (bson.D, error) {
	v, err := structValue(entity)
	if err != nil {
		return nil, err
	}
	def, err := c.registry.RegisterType(v.Type())
	if err != nil {
		return nil, err
	}
	return c.encodeStruct(def, v)
}

// Marshal 把实体编码成 BSON 字节。
func (c *Codec) Marshal(entity any) (bson.Raw, error) {
	doc, err := c.Encode(entity)
	if err != nil {
		return nil, err
	}
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, dberr.Mapping(typeName(reflect.TypeOf(entity)), "marshal document: %v", err)
	}
	return bson.Raw(b), nil
}

// EncodeValue 编码单个值，用于构造过滤条件时与存储格式保持一致。
func (c *Codec) EncodeValue(v any) (any, error) {
	return c.encodeValue(reflect.ValueOf(v))
}

func (c *Codec) encodeStruct(def *TypeDefinition, v reflect.Value) (bson.D, error) {
	doc := make(bson.D, 0, len(def.fields))
	for _, f := range def.fields {
		fv := v.FieldByIndex(f.Index)
		var (
			ev  any
			err error
		)
		switch f.Kind {
		case KindNested:
			ev, err = c.encodeNested(f.NestedType, fv)
		case KindNestedCollection:
			ev, err = c.encodeNestedCollection(f.NestedType, fv)
		default:
			ev, err = c.encodeValue(fv)
		}
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: f.ElementName, Value: ev})
	}
	return doc, nil
}

func (c *Codec) encodeNested(t reflect.Type, v reflect.Value) (any, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	def, err := c.registry.RegisterType(t)
	if err != nil {
		return nil, err
	}
	return c.encodeStruct(def, v)
}

func (c *Codec) encodeNestedCollection(t reflect.Type, v reflect.Value) (any, error) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, nil
	}
	arr := make(bson.A, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		ev, err := c.encodeNested(t, v.Index(i))
		if err != nil {
			return nil, err
		}
		arr = append(arr, ev)
	}
	return arr, nil
}

func (c *Codec) encodeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Type() {
	case uuidType:
		return v.Interface().(uuid.UUID).String(), nil
	case objectIDType:
		return v.Interface(), nil
	case docType:
		return c.encodeDocument(v.Interface().(bson.D))
	case elementType:
		return c.encodeDocument(bson.D{v.Interface().(bson.E)})
	case rawType:
		if v.Len() == 0 {
			return nil, nil
		}
		return v.Interface(), nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return c.encodeValue(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface(), nil
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		doc := make(bson.D, 0, len(keys))
		for _, k := range keys {
			ev, err := c.encodeValue(v.MapIndex(k))
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: k.String(), Value: ev})
		}
		return doc, nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		return c.encodeArray(v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface(), nil
		}
		return c.encodeArray(v)
	case reflect.Struct:
		if isScalarStruct(v.Type()) {
			return v.Interface(), nil
		}
		return c.encodeNested(v.Type(), v)
	}
	return v.Interface(), nil
}

// encodeDocument 保持 bson.D 的键顺序，只对值递归编码。
func (c *Codec) encodeDocument(d bson.D) (any, error) {
	if d == nil {
		return nil, nil
	}
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		ev, err := c.encodeValue(reflect.ValueOf(e.Value))
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: e.Key, Value: ev})
	}
	return out, nil
}

func (c *Codec) encodeArray(v reflect.Value) (any, error) {
	arr := make(bson.A, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		ev, err := c.encodeValue(v.Index(i))
		if err != nil {
			return nil, err
		}
		arr = append(arr, ev)
	}
	return arr, nil
}

// Decode 把文档解码到 target（结构体指针），未映射的文档字段被忽略。
func (c *Codec) Decode(raw bson.Raw, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return dberr.Mapping(typeName(reflect.TypeOf(target)), "decode target must be a non-nil struct pointer")
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return dberr.Mapping(typeName(rv.Elem().Type()), "unmarshal document: %v", err)
	}
	def, err := c.registry.RegisterType(rv.Elem().Type())
	if err != nil {
		return err
	}
	return c.decodeStruct(def, doc, rv.Elem())
}

func (c *Codec) decodeStruct(def *TypeDefinition, doc bson.D, v reflect.Value) error {
	for _, e := range doc {
		i, ok := def.byElement[e.Key]
		if !ok {
			continue
		}
		f := def.fields[i]
		if err := c.decodeValue(v.FieldByIndex(f.Index), e.Value); err != nil {
			return dberr.Mapping(def.Name(), "decode field %s: %v", f.Name, err)
		}
	}
	return nil
}

func (c *Codec) decodeValue(target reflect.Value, val any) error {
	t := target.Type()
	if val == nil {
		target.Set(reflect.Zero(t))
		return nil
	}

	switch t {
	case uuidType:
		return decodeUUID(target, val)
	case objectIDType:
		return decodeObjectID(target, val)
	case docType, elementType, rawType:
		return decodeDocument(target, val)
	case timeType:
		switch x := val.(type) {
		case bson.DateTime:
			target.Set(reflect.ValueOf(x.Time().UTC()))
			return nil
		case time.Time:
			target.Set(reflect.ValueOf(x))
			return nil
		}
	}

	switch t.Kind() {
	case reflect.Pointer:
		nv := reflect.New(t.Elem())
		if err := c.decodeValue(nv.Elem(), val); err != nil {
			return err
		}
		target.Set(nv)
		return nil
	case reflect.Interface:
		rv := reflect.ValueOf(val)
		if !rv.Type().AssignableTo(t) {
			return fmt.Errorf("cannot assign %T to %s", val, t)
		}
		target.Set(rv)
		return nil
	case reflect.Struct:
		if isScalarStruct(t) {
			break
		}
		doc, ok := asDocument(val)
		if !ok {
			return fmt.Errorf("expected document for %s, got %T", t, val)
		}
		def, err := c.registry.RegisterType(t)
		if err != nil {
			return err
		}
		return c.decodeStruct(def, doc, target)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			switch x := val.(type) {
			case []byte:
				target.SetBytes(append([]byte(nil), x...))
				return nil
			case bson.Binary:
				target.SetBytes(append([]byte(nil), x.Data...))
				return nil
			}
		}
		arr, ok := asArray(val)
		if !ok {
			return fmt.Errorf("expected array for %s, got %T", t, val)
		}
		s := reflect.MakeSlice(t, len(arr), len(arr))
		for i, el := range arr {
			if err := c.decodeValue(s.Index(i), el); err != nil {
				return err
			}
		}
		target.Set(s)
		return nil
	case reflect.Array:
		arr, ok := asArray(val)
		if !ok {
			break
		}
		if len(arr) > t.Len() {
			return fmt.Errorf("array of %d elements does not fit %s", len(arr), t)
		}
		for i, el := range arr {
			if err := c.decodeValue(target.Index(i), el); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}
		doc, ok := asDocument(val)
		if !ok {
			return fmt.Errorf("expected document for %s, got %T", t, val)
		}
		m := reflect.MakeMapWithSize(t, len(doc))
		for _, e := range doc {
			ev := reflect.New(t.Elem()).Elem()
			if err := c.decodeValue(ev, e.Value); err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(e.Key).Convert(t.Key()), ev)
		}
		target.Set(m)
		return nil
	case reflect.String:
		switch x := val.(type) {
		case string:
			target.SetString(x)
			return nil
		case bson.ObjectID:
			target.SetString(x.Hex())
			return nil
		}
	case reflect.Bool:
		if b, ok := val.(bool); ok {
			target.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if x, ok := val.(bson.DateTime); ok && t.Kind() == reflect.Int64 && t != dateTimeType {
			target.SetInt(int64(x))
			return nil
		}
		rv := reflect.ValueOf(val)
		if isNumericKind(rv.Kind()) {
			return setNumber(target, rv)
		}
	}

	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(t):
		target.Set(rv)
		return nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind():
		target.Set(rv.Convert(t))
		return nil
	}
	return fmt.Errorf("cannot decode %T into %s", val, t)
}

func decodeDocument(target reflect.Value, val any) error {
	doc, ok := asDocument(val)
	if !ok {
		return fmt.Errorf("expected document for %s, got %T", target.Type(), val)
	}
	switch target.Type() {
	case docType:
		target.Set(reflect.ValueOf(doc))
	case elementType:
		if len(doc) != 1 {
			return fmt.Errorf("expected single-element document for bson.E, got %d elements", len(doc))
		}
		target.Set(reflect.ValueOf(doc[0]))
	case rawType:
		b, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(bson.Raw(b)))
	}
	return nil
}

// setNumber 在数值类型之间赋值，溢出、丢失小数或精度时报错。
func setNumber(target, src reflect.Value) error {
	t := target.Type()
	switch {
	case src.CanInt():
		i := src.Int()
		switch {
		case target.CanInt():
			if target.OverflowInt(i) {
				return fmt.Errorf("value %d overflows %s", i, t)
			}
			target.SetInt(i)
			return nil
		case target.CanUint():
			if i < 0 || target.OverflowUint(uint64(i)) {
				return fmt.Errorf("value %d overflows %s", i, t)
			}
			target.SetUint(uint64(i))
			return nil
		case target.CanFloat():
			f := float64(i)
			if int64(f) != i || target.OverflowFloat(f) {
				return fmt.Errorf("value %d loses precision in %s", i, t)
			}
			target.SetFloat(f)
			return nil
		}
	case src.CanUint():
		u := src.Uint()
		switch {
		case target.CanInt():
			if u > math.MaxInt64 || target.OverflowInt(int64(u)) {
				return fmt.Errorf("value %d overflows %s", u, t)
			}
			target.SetInt(int64(u))
			return nil
		case target.CanUint():
			if target.OverflowUint(u) {
				return fmt.Errorf("value %d overflows %s", u, t)
			}
			target.SetUint(u)
			return nil
		case target.CanFloat():
			f := float64(u)
			if uint64(f) != u {
				return fmt.Errorf("value %d loses precision in %s", u, t)
			}
			target.SetFloat(f)
			return nil
		}
	case src.CanFloat():
		f := src.Float()
		switch {
		case target.CanFloat():
			if target.OverflowFloat(f) {
				return fmt.Errorf("value %v overflows %s", f, t)
			}
			target.SetFloat(f)
			return nil
		case target.CanInt():
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || target.OverflowInt(int64(f)) {
				return fmt.Errorf("value %v does not fit %s", f, t)
			}
			target.SetInt(int64(f))
			return nil
		case target.CanUint():
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || target.OverflowUint(uint64(f)) {
				return fmt.Errorf("value %v does not fit %s", f, t)
			}
			target.SetUint(uint64(f))
			return nil
		}
	}
	return fmt.Errorf("cannot decode %s into %s", src.Type(), t)
}

func decodeUUID(target reflect.Value, val any) error {
	switch x := val.(type) {
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(u))
		return nil
	case bson.Binary:
		u, err := uuid.FromBytes(x.Data)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(u))
		return nil
	}
	return fmt.Errorf("cannot decode %T into uuid.UUID", val)
}

func decodeObjectID(target reflect.Value, val any) error {
	switch x := val.(type) {
	case bson.ObjectID:
		target.Set(reflect.ValueOf(x))
		return nil
	case string:
		oid, err := bson.ObjectIDFromHex(x)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(oid))
		return nil
	}
	return fmt.Errorf("cannot decode %T into bson.ObjectID", val)
}

func asDocument(val any) (bson.D, bool) {
	switch x := val.(type) {
	case bson.D:
		return x, true
	case bson.M:
		return sortedDoc(x), true
	case map[string]any:
		return sortedDoc(x), true
	}
	return nil, false
}

func sortedDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: m[k]})
	}
	return doc
}

func asArray(val any) ([]any, bool) {
	switch x := val.(type) {
	case bson.A:
		return x, true
	case []any:
		return x, true
	}
	return nil, false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func structValue(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, dberr.Mapping(typeName(reflect.TypeOf(entity)), "entity is nil")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, dberr.Mapping(typeName(reflect.TypeOf(entity)), "entity must be a struct, got %s", v.Kind())
	}
	return v, nil
}
