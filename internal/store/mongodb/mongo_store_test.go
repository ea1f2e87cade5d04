package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	sharedmongo "DocTrack/internal/shared/infrastructure/mongo"
	"DocTrack/internal/shared/serverconfig"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const testURIEnv = "DOCTRACK_TEST_MONGODB_URI"

func TestStore_未配置数据库(t *testing.T) {
	s := NewStore(nil, nil)
	ctx := context.Background()
	if err := s.BulkWrite(ctx, "c", []mongo.WriteModel{mongo.NewDeleteOneModel().SetFilter(bson.D{})}); err == nil {
		t.Fatalf("期望返回错误")
	}
	if err := s.BulkWrite(ctx, "c", nil); err != nil {
		t.Fatalf("期望空批次直接返回, err=%v", err)
	}
	if _, err := s.Find(ctx, "c", nil, 0); err == nil {
		t.Fatalf("期望返回错误")
	}
}

// 需要真实 MongoDB：DOCTRACK_TEST_MONGODB_URI=mongodb://127.0.0.1:27017 go test ./internal/store/mongodb/
func TestStore_集成(t *testing.T) {
	uri := os.Getenv(testURIEnv)
	if uri == "" {
		t.Skipf("未设置 %s", testURIEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := sharedmongo.Open(ctx, serverconfig.MongoDBConfig{URI: uri, ConnectTimeoutS: 5}, nil)
	if err != nil {
		t.Fatalf("open err=%v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database("doctrack_test_" + bson.NewObjectID().Hex())
	defer func() { _ = db.Drop(context.Background()) }()
	s := NewStore(db, nil)

	err = s.BulkWrite(ctx, "items", []mongo.WriteModel{
		mongo.NewInsertOneModel().SetDocument(bson.D{{Key: "_id", Value: "a"}, {Key: "flag", Value: true}}),
		mongo.NewInsertOneModel().SetDocument(bson.D{{Key: "_id", Value: "b"}, {Key: "flag", Value: false}}),
		mongo.NewReplaceOneModel().SetFilter(bson.D{{Key: "_id", Value: "b"}}).
			SetReplacement(bson.D{{Key: "_id", Value: "b"}, {Key: "flag", Value: true}}),
		mongo.NewDeleteOneModel().SetFilter(bson.D{{Key: "_id", Value: "a"}}),
	})
	if err != nil {
		t.Fatalf("bulk err=%v", err)
	}
	n, err := s.Count(ctx, "items", bson.D{{Key: "flag", Value: true}})
	if err != nil || n != 1 {
		t.Fatalf("期望剩 1 条, n=%d err=%v", n, err)
	}
	raws, err := s.Find(ctx, "items", nil, 1)
	if err != nil || len(raws) != 1 || raws[0].Lookup("_id").StringValue() != "b" {
		t.Fatalf("got=%v err=%v", raws, err)
	}
}
