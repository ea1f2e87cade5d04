package dbcontext

import (
	"context"
	"sync"

	"DocTrack/internal/store/memory"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// recordingStore 在内存存储外面记录每次 BulkWrite，并可注入失败。
type recordingStore struct {
	*memory.Store

	mu       sync.Mutex
	calls    int
	models   []mongo.WriteModel
	failures []error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore()}
}

// failNext 让接下来的 BulkWrite 依次返回这些错误。
func (s *recordingStore) failNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *recordingStore) BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	s.mu.Lock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		return err
	}
	s.models = append(s.models, models...)
	s.mu.Unlock()
	return s.Store.BulkWrite(ctx, collection, models)
}

func (s *recordingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingStore) writtenModels() []mongo.WriteModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mongo.WriteModel(nil), s.models...)
}

// blockingStore 的 BulkWrite 会阻塞到 release 被关闭。
type blockingStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Store.BulkWrite(ctx, collection, models)
}
