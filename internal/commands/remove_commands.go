package commands

import (
	"reflect"

	"DocTrack/internal/mapping"
	"DocTrack/internal/shared/dberr"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// RemoveByIDCommand 按标识删除一个不在跟踪中的实体。
type RemoveByIDCommand struct {
	typ      reflect.Type
	id       any
	tenantID string
	seq      uint64
}

func NewRemoveByIDCommand(typ reflect.Type, id any, tenantID string, seq uint64) *RemoveByIDCommand {
	return &RemoveByIDCommand{typ: typ, id: id, tenantID: tenantID, seq: seq}
}

func (c *RemoveByIDCommand) EntityType() reflect.Type { return c.typ }
func (c *RemoveByIDCommand) Sequence() uint64         { return c.seq }

func (c *RemoveByIDCommand) WriteModels(codec *mapping.Codec) ([]mongo.WriteModel, error) {
	def, err := codec.Registry().GetOrCreateDefinition(c.typ)
	if err != nil {
		return nil, err
	}
	filter, err := def.CreateIDFilter(c.id, c.tenantID)
	if err != nil {
		return nil, err
	}
	return []mongo.WriteModel{mongo.NewDeleteOneModel().SetFilter(filter)}, nil
}

// RemoveRangeCommand 按过滤条件批量删除；类型分租户时自动 AND 上租户条件。
type RemoveRangeCommand struct {
	typ      reflect.Type
	filter   any
	tenantID string
	seq      uint64
}

func NewRemoveRangeCommand(typ reflect.Type, filter any, tenantID string, seq uint64) *RemoveRangeCommand {
	return &RemoveRangeCommand{typ: typ, filter: filter, tenantID: tenantID, seq: seq}
}

func (c *RemoveRangeCommand) EntityType() reflect.Type { return c.typ }
func (c *RemoveRangeCommand) Sequence() uint64         { return c.seq }

func (c *RemoveRangeCommand) WriteModels(codec *mapping.Codec) ([]mongo.WriteModel, error) {
	def, err := codec.Registry().GetOrCreateDefinition(c.typ)
	if err != nil {
		return nil, err
	}
	if c.filter == nil {
		return nil, dberr.InvalidOperation(def.Name(), nil, "remove range requires a filter")
	}
	filter := mapping.And(c.filter, def.TenantFilter(c.tenantID))
	return []mongo.WriteModel{mongo.NewDeleteManyModel().SetFilter(filter)}, nil
}
