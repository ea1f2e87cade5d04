package tracking

import (
	"bytes"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// diffDocuments 逐字段比较两份文档，返回有差异的文档字段名。
// 顺序：after 中的字段按出现顺序在前，before 独有的字段在后。
func diffDocuments(before, after bson.Raw) ([]string, error) {
	beforeEls, err := before.Elements()
	if err != nil {
		return nil, err
	}
	afterEls, err := after.Elements()
	if err != nil {
		return nil, err
	}

	old := make(map[string]bson.RawValue, len(beforeEls))
	for _, el := range beforeEls {
		old[el.Key()] = el.Value()
	}

	var changed []string
	for _, el := range afterEls {
		key := el.Key()
		prev, ok := old[key]
		delete(old, key)
		if !ok || !rawEqual(prev, el.Value()) {
			changed = append(changed, key)
		}
	}
	for _, el := range beforeEls {
		if _, gone := old[el.Key()]; gone {
			changed = append(changed, el.Key())
		}
	}
	return changed, nil
}

func rawEqual(a, b bson.RawValue) bool {
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}
