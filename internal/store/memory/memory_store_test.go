package memory

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func seed(t *testing.T, s *Store, docs ...bson.D) {
	t.Helper()
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		models = append(models, mongo.NewInsertOneModel().SetDocument(d))
	}
	if err := s.BulkWrite(context.Background(), "items", models); err != nil {
		t.Fatalf("seed err=%v", err)
	}
}

func ids(t *testing.T, raws []bson.Raw) []string {
	t.Helper()
	out := make([]string, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.Lookup("_id").StringValue())
	}
	return out
}

func TestBulkWrite_插入替换删除(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seed(t, s,
		bson.D{{Key: "_id", Value: "a"}, {Key: "n", Value: 1}},
		bson.D{{Key: "_id", Value: "b"}, {Key: "n", Value: 2}},
	)

	err := s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: "a"}}).
			SetReplacement(bson.D{{Key: "_id", Value: "a"}, {Key: "n", Value: int32(10)}}),
		mongo.NewDeleteOneModel().SetFilter(bson.D{{Key: "_id", Value: "b"}}),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	raws, _ := s.Find(ctx, "items", nil, 0)
	if len(raws) != 1 || raws[0].Lookup("n").Int32() != 10 {
		t.Fatalf("期望只剩被替换的 a, got=%v", raws)
	}
}

func TestBulkWrite_重复主键整批回滚(t *testing.T) {
	s := NewStore()
	seed(t, s, bson.D{{Key: "_id", Value: "a"}})

	err := s.BulkWrite(context.Background(), "items", []mongo.WriteModel{
		mongo.NewInsertOneModel().SetDocument(bson.D{{Key: "_id", Value: "b"}}),
		mongo.NewInsertOneModel().SetDocument(bson.D{{Key: "_id", Value: "a"}}),
	})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("期望重复主键错误, got=%v", err)
	}
	if s.Len("items") != 1 {
		t.Fatalf("期望失败批次不留下任何写入, len=%d", s.Len("items"))
	}
}

func TestBulkWrite_替换未命中且upsert时插入(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	err := s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: "x"}}).
			SetReplacement(bson.D{{Key: "_id", Value: "x"}}),
	})
	if err != nil || s.Len("items") != 0 {
		t.Fatalf("期望未命中且无 upsert 时不写入, len=%d err=%v", s.Len("items"), err)
	}
	err = s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: "x"}}).
			SetReplacement(bson.D{{Key: "_id", Value: "x"}}).
			SetUpsert(true),
	})
	if err != nil || s.Len("items") != 1 {
		t.Fatalf("期望 upsert 插入, len=%d err=%v", s.Len("items"), err)
	}
}

func TestBulkWrite_插入缺少主键时生成ObjectID(t *testing.T) {
	s := NewStore()
	seed(t, s, bson.D{{Key: "n", Value: 1}})
	raws, _ := s.Find(context.Background(), "items", nil, 0)
	if len(raws) != 1 || raws[0].Lookup("_id").Type != bson.TypeObjectID {
		t.Fatalf("期望生成 ObjectID 主键, got=%v", raws)
	}
}

func TestBulkWrite_DeleteMany(t *testing.T) {
	s := NewStore()
	seed(t, s,
		bson.D{{Key: "_id", Value: "a"}, {Key: "flag", Value: true}},
		bson.D{{Key: "_id", Value: "b"}, {Key: "flag", Value: false}},
		bson.D{{Key: "_id", Value: "c"}, {Key: "flag", Value: true}},
	)
	err := s.BulkWrite(context.Background(), "items", []mongo.WriteModel{
		mongo.NewDeleteManyModel().SetFilter(bson.D{{Key: "flag", Value: true}}),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	raws, _ := s.Find(context.Background(), "items", nil, 0)
	if got := ids(t, raws); len(got) != 1 || got[0] != "b" {
		t.Fatalf("期望只剩 b, got=%v", got)
	}
}

func TestBulkWrite_已取消的上下文(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewInsertOneModel().SetDocument(bson.D{{Key: "_id", Value: "a"}}),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled, got=%v", err)
	}
	if s.Len("items") != 0 {
		t.Fatalf("期望未写入")
	}
}

func TestFind_过滤子集(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seed(t, s,
		bson.D{{Key: "_id", Value: "a"}, {Key: "n", Value: int32(1)}, {Key: "tenant", Value: "t1"},
			{Key: "addr", Value: bson.D{{Key: "city", Value: "Chengdu"}}}, {Key: "tags", Value: bson.A{"x", "y"}}},
		bson.D{{Key: "_id", Value: "b"}, {Key: "n", Value: int64(2)}, {Key: "tenant", Value: "t2"},
			{Key: "addr", Value: bson.D{{Key: "city", Value: "Xi'an"}}}},
		bson.D{{Key: "_id", Value: "c"}, {Key: "n", Value: 3.0}, {Key: "tenant", Value: "t1"}},
	)

	cases := []struct {
		name   string
		filter any
		want   int
	}{
		{"隐式相等", bson.D{{Key: "tenant", Value: "t1"}}, 2},
		{"数值跨类型相等", bson.M{"n": 2}, 1},
		{"$ne", bson.D{{Key: "tenant", Value: bson.D{{Key: "$ne", Value: "t1"}}}}, 1},
		{"$in", bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{"a", "c", "zz"}}}}}, 2},
		{"$nin", bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: bson.A{"a"}}}}}, 2},
		{"$exists", bson.D{{Key: "addr", Value: bson.D{{Key: "$exists", Value: false}}}}, 1},
		{"点号路径", bson.D{{Key: "addr.city", Value: "Chengdu"}}, 1},
		{"数组包含", bson.D{{Key: "tags", Value: "y"}}, 1},
		{"$gte", bson.D{{Key: "n", Value: bson.D{{Key: "$gte", Value: 2}}}}, 2},
		{"$and", bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tenant", Value: "t1"}},
			bson.D{{Key: "n", Value: bson.D{{Key: "$lt", Value: 2}}}},
		}}}, 1},
		{"$or", bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "_id", Value: "a"}},
			bson.D{{Key: "_id", Value: "b"}},
		}}}, 2},
		{"空过滤匹配全部", bson.D{}, 3},
		{"null 匹配缺失字段", bson.D{{Key: "tags", Value: nil}}, 2},
	}
	for _, c := range cases {
		n, err := s.Count(ctx, "items", c.filter)
		if err != nil {
			t.Fatalf("%s: err=%v", c.name, err)
		}
		if n != int64(c.want) {
			t.Fatalf("%s: 期望 %d 条, got=%d", c.name, c.want, n)
		}
	}
}

func TestFind_limit与不支持的操作符(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seed(t, s, bson.D{{Key: "_id", Value: "a"}}, bson.D{{Key: "_id", Value: "b"}})

	raws, err := s.Find(ctx, "items", nil, 1)
	if err != nil || len(raws) != 1 {
		t.Fatalf("期望 limit 生效, got=%d err=%v", len(raws), err)
	}
	if _, err := s.Find(ctx, "items", bson.D{{Key: "_id", Value: bson.D{{Key: "$regex", Value: "a"}}}}, 0); err == nil {
		t.Fatalf("期望不支持的操作符返回错误")
	}
}

func TestBulkWrite_大整数主键精确比较(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	const base = int64(1) << 60
	seed(t, s,
		bson.D{{Key: "_id", Value: base}, {Key: "name", Value: "a"}},
		bson.D{{Key: "_id", Value: base + 1}, {Key: "name", Value: "b"}},
	)
	if s.Len("items") != 2 {
		t.Fatalf("期望相邻的大整数主键不冲突, len=%d", s.Len("items"))
	}

	raws, err := s.Find(ctx, "items", bson.D{{Key: "_id", Value: base + 1}}, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(raws) != 1 || raws[0].Lookup("name").StringValue() != "b" {
		t.Fatalf("期望只命中 b, got=%v", raws)
	}
	n, _ := s.Count(ctx, "items", bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: base}}}})
	if n != 1 {
		t.Fatalf("期望 $gt 精确比较, got=%d", n)
	}

	err = s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewDeleteOneModel().SetFilter(bson.D{{Key: "_id", Value: base + 2}}),
	})
	if err != nil || s.Len("items") != 2 {
		t.Fatalf("期望删除不存在的主键不影响其他文档, err=%v len=%d", err, s.Len("items"))
	}
}

func TestFind_整数与浮点按数值比较(t *testing.T) {
	s := NewStore()
	seed(t, s, bson.D{{Key: "_id", Value: "a"}, {Key: "n", Value: int32(3)}})
	n, _ := s.Count(context.Background(), "items", bson.D{{Key: "n", Value: 3.0}})
	if n != 1 {
		t.Fatalf("期望 int32(3) 与 3.0 相等, got=%d", n)
	}
	n, _ = s.Count(context.Background(), "items", bson.D{{Key: "n", Value: bson.D{{Key: "$lt", Value: 3.5}}}})
	if n != 1 {
		t.Fatalf("期望 3 < 3.5, got=%d", n)
	}
}
