// Package commands 把跟踪状态和暂存的删除请求编译成一批存储写模型。
package commands

import (
	"reflect"

	"DocTrack/internal/mapping"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// WriteCommand 描述一个待执行的写操作，保存时才生成写模型。
type WriteCommand interface {
	EntityType() reflect.Type
	// Sequence 是提交序号，编译时按它排序。
	Sequence() uint64
	WriteModels(codec *mapping.Codec) ([]mongo.WriteModel, error)
}

// 写模型种类，用于日志和指标。
const (
	KindInsert     = "insert"
	KindReplace    = "replace"
	KindDelete     = "delete"
	KindDeleteMany = "delete_many"
	KindOther      = "other"
)

// ModelKind 返回写模型的种类。
func ModelKind(m mongo.WriteModel) string {
	switch m.(type) {
	case *mongo.InsertOneModel:
		return KindInsert
	case *mongo.ReplaceOneModel:
		return KindReplace
	case *mongo.DeleteOneModel:
		return KindDelete
	case *mongo.DeleteManyModel:
		return KindDeleteMany
	}
	return KindOther
}
