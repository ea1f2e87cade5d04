package commands

import (
	"reflect"

	"DocTrack/internal/mapping"
	"DocTrack/internal/tracking"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// EntityCommand 由一个被跟踪条目生成写模型：
// Added → InsertOne，Updated → ReplaceOne（upsert），Deleted → DeleteOne，NoChanges 不产生写模型。
// Updated 按 upsert 写入：未跟踪实体调用 Update 而文档不存在时会新建文档。
type EntityCommand struct {
	entry    *tracking.Entry
	tenantID string
}

func NewEntityCommand(entry *tracking.Entry, tenantID string) *EntityCommand {
	return &EntityCommand{entry: entry, tenantID: tenantID}
}

func (c *EntityCommand) EntityType() reflect.Type {
	return c.entry.Type()
}

func (c *EntityCommand) Sequence() uint64 {
	return c.entry.Sequence()
}

func (c *EntityCommand) Entry() *tracking.Entry {
	return c.entry
}

func (c *EntityCommand) WriteModels(codec *mapping.Codec) ([]mongo.WriteModel, error) {
	def := c.entry.Definition()
	entity := c.entry.Entity()

	switch c.entry.State() {
	case tracking.Added:
		if _, err := def.EnsureID(entity); err != nil {
			return nil, err
		}
		doc, err := codec.Encode(entity)
		if err != nil {
			return nil, err
		}
		return []mongo.WriteModel{mongo.NewInsertOneModel().SetDocument(doc)}, nil

	case tracking.Updated:
		filter, err := c.idFilter(def, entity)
		if err != nil {
			return nil, err
		}
		doc, err := codec.Encode(entity)
		if err != nil {
			return nil, err
		}
		return []mongo.WriteModel{mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(doc).SetUpsert(true)}, nil

	case tracking.Deleted:
		filter, err := c.idFilter(def, entity)
		if err != nil {
			return nil, err
		}
		return []mongo.WriteModel{mongo.NewDeleteOneModel().SetFilter(filter)}, nil
	}
	return nil, nil
}

func (c *EntityCommand) idFilter(def *mapping.TypeDefinition, entity any) (any, error) {
	id, ok := def.IDValue(entity)
	if !ok {
		id = nil
	}
	return def.CreateIDFilter(id, c.tenantID)
}
