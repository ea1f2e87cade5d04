// Package store 定义变更跟踪层依赖的文档存储边界。
//
// 写模型直接使用驱动的 mongo.WriteModel（InsertOne/ReplaceOne/DeleteOne/DeleteMany），
// 过滤条件是驱动原生的过滤文档（bson.D / bson.M），这里不做查询表达式翻译。
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Store 是存储驱动的最小能力集合。
type Store interface {
	// BulkWrite 按顺序执行同一集合上的一批写模型，整体返回成功或失败。
	BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error
	// Find 返回匹配的文档；limit <= 0 表示不限制。
	Find(ctx context.Context, collection string, filter any, limit int64) ([]bson.Raw, error)
	Count(ctx context.Context, collection string, filter any) (int64, error)
}

// MatchAll 是匹配全部文档的空过滤条件。
func MatchAll() bson.D {
	return bson.D{}
}

// FilterOrAll 把 nil 过滤条件替换成匹配全部。
func FilterOrAll(filter any) any {
	if filter == nil {
		return MatchAll()
	}
	return filter
}
