package mongo

import (
	"context"
	"errors"
	"time"

	"DocTrack/internal/shared/serverconfig"
	"DocTrack/modules/kit/errx"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Open 连接 MongoDB 并 Ping 一次。错误归一化成 errx：
// 配置错误为 INVALID_ARGUMENT，Ping 超时为 TIMEOUT，调用方取消为 CANCELED，其余为 STORE_UNAVAILABLE。
func Open(ctx context.Context, cfg serverconfig.MongoDBConfig, l *zap.Logger) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errx.ErrInvalidArgument.WithCause(errors.New("mongodb uri is empty"))
	}
	if l == nil {
		l = zap.NewNop()
	}

	timeout := time.Duration(cfg.ConnectTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, errx.ErrInvalidArgument.WithData("uri", cfg.URI).WithCause(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errx.Classify(ctx, err, errx.ErrUnavailable).WithData("uri", cfg.URI)
	}

	l.Info("open mongodb success",
		zap.String("uri", cfg.URI),
		zap.String("database", cfg.Database),
	)
	return client, nil
}
