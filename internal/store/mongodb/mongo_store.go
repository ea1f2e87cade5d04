package mongodb

import (
	"context"
	"errors"

	"DocTrack/internal/store"
	"DocTrack/modules/kit/logx"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	OpBulkWrite = "store.mongodb.BulkWrite"
	OpFind      = "store.mongodb.Find"
	OpCount     = "store.mongodb.Count"
)

// Store 基于 *mongo.Database 实现 store.Store。
// 驱动返回的错误原样返回，调用方据此决定是否重试。
type Store struct {
	db     *mongo.Database
	logger logx.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(db *mongo.Database, l logx.Logger) *Store {
	if l == nil {
		l = logx.Nop()
	}
	return &Store{db: db, logger: l}
}

func (s *Store) collection(name string) (*mongo.Collection, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("mongodb database is nil")
	}
	return s.db.Collection(name), nil
}

func (s *Store) BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	fields := []zap.Field{
		zap.String("collection", collection),
		zap.Int("models", len(models)),
	}
	if res != nil {
		fields = append(fields,
			zap.Int64("inserted", res.InsertedCount),
			zap.Int64("matched", res.MatchedCount),
			zap.Int64("deleted", res.DeletedCount),
		)
	}
	logx.ReportOpWithLoggerContext(ctx, s.logger, OpBulkWrite, err, fields...)
	return err
}

func (s *Store) Find(ctx context.Context, collection string, filter any, limit int64) ([]bson.Raw, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := coll.Find(ctx, store.FilterOrAll(filter), opts)
	if err != nil {
		logx.ReportOpWithLoggerContext(ctx, s.logger, OpFind, err, zap.String("collection", collection))
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()

	var out []bson.Raw
	for cur.Next(ctx) {
		// cur.Current 在下一次 Next 时会被复用，必须拷贝。
		out = append(out, bson.Raw(append([]byte(nil), cur.Current...)))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter any) (int64, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, store.FilterOrAll(filter))
	if err != nil {
		logx.ReportOpWithLoggerContext(ctx, s.logger, OpCount, err, zap.String("collection", collection))
	}
	return n, err
}
