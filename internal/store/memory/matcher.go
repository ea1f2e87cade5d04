package memory

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// 支持的过滤子集：
//   - 逻辑：$and $or $nor
//   - 比较：$eq $ne $in $nin $exists $gt $gte $lt $lte
//   - 隐式相等 {field: value}，点号路径，数组字段按“任一元素满足”匹配
func matches(doc, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElement(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElement(doc bson.D, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		subs, err := subFilters(e)
		if err != nil {
			return false, err
		}
		return matchLogical(doc, e.Key, subs)
	}
	if strings.HasPrefix(e.Key, "$") {
		return false, fmt.Errorf("unsupported operator %s", e.Key)
	}

	values, found := resolve(doc, strings.Split(e.Key, "."))
	if ops, ok := operatorDoc(e.Value); ok {
		for _, op := range ops {
			ok, err := matchOperator(values, found, op)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return anyEqual(values, e.Value), nil
}

func subFilters(e bson.E) ([]bson.D, error) {
	arr, ok := e.Value.(bson.A)
	if !ok {
		return nil, fmt.Errorf("%s expects an array, got %T", e.Key, e.Value)
	}
	out := make([]bson.D, 0, len(arr))
	for _, v := range arr {
		d, ok := v.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s expects documents, got %T", e.Key, v)
		}
		out = append(out, d)
	}
	return out, nil
}

func matchLogical(doc bson.D, op string, subs []bson.D) (bool, error) {
	for _, sub := range subs {
		ok, err := matches(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func operatorDoc(v any) (bson.D, bool) {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchOperator(values []any, found bool, op bson.E) (bool, error) {
	switch op.Key {
	case "$eq":
		return anyEqual(values, op.Value), nil
	case "$ne":
		return !anyEqual(values, op.Value), nil
	case "$in", "$nin":
		arr, ok := op.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s expects an array, got %T", op.Key, op.Value)
		}
		hit := false
		for _, want := range arr {
			if anyEqual(values, want) {
				hit = true
				break
			}
		}
		return hit == (op.Key == "$in"), nil
	case "$exists":
		want, ok := op.Value.(bool)
		if !ok {
			return false, fmt.Errorf("$exists expects a bool, got %T", op.Value)
		}
		return found == want, nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range flatten(values) {
			c, ok := compare(v, op.Value)
			if !ok {
				continue
			}
			switch op.Key {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			default:
				ok = c <= 0
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported operator %s", op.Key)
}

// resolve 沿点号路径取值；途经数组时对每个元素继续解析。
// 字段缺失时 found 为 false，此时按 null 参与相等比较。
func resolve(doc bson.D, path []string) ([]any, bool) {
	v, ok := lookup(doc, path[0])
	if !ok {
		return []any{nil}, false
	}
	if len(path) == 1 {
		return []any{v}, true
	}
	rest := path[1:]
	switch x := v.(type) {
	case bson.D:
		return resolve(x, rest)
	case bson.A:
		var out []any
		found := false
		for _, item := range x {
			d, ok := item.(bson.D)
			if !ok {
				continue
			}
			vs, f := resolve(d, rest)
			if f {
				out = append(out, vs...)
				found = true
			}
		}
		if !found {
			return []any{nil}, false
		}
		return out, true
	}
	return []any{nil}, false
}

func lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func flatten(values []any) []any {
	var out []any
	for _, v := range values {
		if arr, ok := v.(bson.A); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func anyEqual(values []any, want any) bool {
	for _, v := range values {
		if valuesEqual(v, want) {
			return true
		}
		if arr, ok := v.(bson.A); ok {
			for _, item := range arr {
				if valuesEqual(item, want) {
					return true
				}
			}
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if c, ok, isNum := compareNumbers(a, b); isNum {
		return ok && c == 0
	}
	switch x := a.(type) {
	case bson.A:
		y, ok := b.(bson.A)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case bson.D:
		y, ok := b.(bson.D)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !valuesEqual(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if c, ok, isNum := compareNumbers(a, b); isNum {
		return c, ok
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case bson.DateTime:
		y, ok := b.(bson.DateTime)
		return cmp3(x < y, x > y), ok
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// compareNumbers 比较两个数值。isNum 表示 a 是数值；ok 表示 b 也是数值。
// 两边都是整数时按 int64 精确比较，有浮点数参与时才退化为 float64。
func compareNumbers(a, b any) (c int, ok bool, isNum bool) {
	ai, aInt := integer(a)
	af, aNum := number(a)
	if !aNum {
		return 0, false, false
	}
	bi, bInt := integer(b)
	bf, bNum := number(b)
	if !bNum {
		return 0, false, true
	}
	if aInt && bInt {
		return cmp3(ai < bi, ai > bi), true, true
	}
	return cmp3(af < bf, af > bf), true, true
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	if n, ok := integer(v); ok {
		return float64(n), true
	}
	f, ok := v.(float64)
	return f, ok
}
