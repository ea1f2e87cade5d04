// Package memory 是进程内的 store.Store 实现，用于测试和本地开发。
//
// 每次 BulkWrite 在副本上执行，全部成功后才替换，批次对外是原子的。
// 支持的过滤子集见 matcher.go。
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"DocTrack/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrDuplicateKey 对应驱动的重复主键错误。
var ErrDuplicateKey = errors.New("memory store: duplicate key")

type Store struct {
	mu          sync.RWMutex
	collections map[string][]bson.D
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string][]bson.D)}
}

func (s *Store) BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := append([]bson.D(nil), s.collections[collection]...)
	for i, m := range models {
		var err error
		docs, err = apply(docs, m)
		if err != nil {
			return fmt.Errorf("memory store: %s write #%d: %w", collection, i, err)
		}
	}
	s.collections[collection] = docs
	return nil
}

func apply(docs []bson.D, m mongo.WriteModel) ([]bson.D, error) {
	switch x := m.(type) {
	case *mongo.InsertOneModel:
		doc, err := normalize(x.Document)
		if err != nil {
			return nil, err
		}
		return insert(docs, doc)
	case *mongo.ReplaceOneModel:
		filter, err := normalize(x.Filter)
		if err != nil {
			return nil, err
		}
		replacement, err := normalize(x.Replacement)
		if err != nil {
			return nil, err
		}
		idx, err := firstMatch(docs, filter)
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			if x.Upsert != nil && *x.Upsert {
				return insert(docs, replacement)
			}
			return docs, nil
		}
		if _, ok := lookup(replacement, "_id"); !ok {
			id, _ := lookup(docs[idx], "_id")
			replacement = append(bson.D{{Key: "_id", Value: id}}, replacement...)
		}
		docs[idx] = replacement
		return docs, nil
	case *mongo.DeleteOneModel:
		filter, err := normalize(x.Filter)
		if err != nil {
			return nil, err
		}
		idx, err := firstMatch(docs, filter)
		if err != nil || idx < 0 {
			return docs, err
		}
		return append(docs[:idx:idx], docs[idx+1:]...), nil
	case *mongo.DeleteManyModel:
		filter, err := normalize(x.Filter)
		if err != nil {
			return nil, err
		}
		kept := docs[:0:0]
		for _, d := range docs {
			ok, err := matches(d, filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				kept = append(kept, d)
			}
		}
		return kept, nil
	}
	return nil, fmt.Errorf("unsupported write model %T", m)
}

func insert(docs []bson.D, doc bson.D) ([]bson.D, error) {
	id, ok := lookup(doc, "_id")
	if !ok || id == nil {
		id = bson.NewObjectID()
		doc = append(bson.D{{Key: "_id", Value: id}}, doc...)
	}
	for _, d := range docs {
		if existing, ok := lookup(d, "_id"); ok && valuesEqual(existing, id) {
			return nil, fmt.Errorf("%w: _id %v", ErrDuplicateKey, id)
		}
	}
	return append(docs, doc), nil
}

func firstMatch(docs []bson.D, filter bson.D) (int, error) {
	for i, d := range docs {
		ok, err := matches(d, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func (s *Store) Find(ctx context.Context, collection string, filter any, limit int64) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(store.FilterOrAll(filter))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []bson.Raw
	for _, d := range s.collections[collection] {
		ok, err := matches(d, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		b, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.Raw(b))
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter any) (int64, error) {
	raws, err := s.Find(ctx, collection, filter, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(raws)), nil
}

// Len 返回集合中的文档数。
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// normalize 经过一次 BSON 往返，把任意文档/过滤条件统一成 bson.D，同时得到独立副本。
func normalize(v any) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}
