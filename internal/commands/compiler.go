package commands

import (
	"sort"

	"DocTrack/internal/mapping"
	"DocTrack/internal/tracking"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Batch 是一次保存要执行的写模型，按集合分组。
// Collections 按首次出现的顺序排列；同一集合内保持提交顺序。
type Batch struct {
	Collections []string
	Models      map[string][]mongo.WriteModel
}

func (b *Batch) Len() int {
	n := 0
	for _, models := range b.Models {
		n += len(models)
	}
	return n
}

// Counts 按写模型种类计数。
func (b *Batch) Counts() map[string]int {
	out := make(map[string]int)
	for _, models := range b.Models {
		for _, m := range models {
			out[ModelKind(m)]++
		}
	}
	return out
}

func (b *Batch) add(collection string, models []mongo.WriteModel) {
	if len(models) == 0 {
		return
	}
	if _, ok := b.Models[collection]; !ok {
		b.Collections = append(b.Collections, collection)
	}
	b.Models[collection] = append(b.Models[collection], models...)
}

// Compile 把待写条目和暂存命令按提交序号合并，生成一批写模型。
// 写模型按集合分组执行：同一集合内保持提交顺序，跨集合不保证，
// 集合之间按各自首次出现的先后依次写入。
// 任一命令失败（例如 Updated/Deleted 实体没有标识）都会中止整批，不会跳过。
func Compile(codec *mapping.Codec, entries []*tracking.Entry, staged []WriteCommand, tenantID string) (*Batch, error) {
	cmds := make([]WriteCommand, 0, len(entries)+len(staged))
	for _, e := range entries {
		if !e.State().NeedsWrite() {
			continue
		}
		cmds = append(cmds, NewEntityCommand(e, tenantID))
	}
	cmds = append(cmds, staged...)
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Sequence() < cmds[j].Sequence() })

	batch := &Batch{Models: make(map[string][]mongo.WriteModel)}
	for _, cmd := range cmds {
		def, err := codec.Registry().GetOrCreateDefinition(cmd.EntityType())
		if err != nil {
			return nil, err
		}
		models, err := cmd.WriteModels(codec)
		if err != nil {
			return nil, err
		}
		batch.add(def.Collection(), models)
	}
	return batch, nil
}
