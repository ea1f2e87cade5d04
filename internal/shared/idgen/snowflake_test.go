package idgen

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSnowflake_单调递增且不重复(t *testing.T) {
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.NextID()
		if id <= prev {
			t.Fatalf("期望单调递增, prev=%d id=%d", prev, id)
		}
		prev = id
	}
}

func TestSnowflake_并发不重复(t *testing.T) {
	s, _ := NewSnowflake(1)
	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := s.NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Fatalf("期望 %d 个不同 id, got=%d", workers*per, len(seen))
	}
}

func TestNewSnowflake_节点号越界(t *testing.T) {
	if _, err := NewSnowflake(MaxNodeID + 1); !errors.Is(err, ErrNodeOutOfRange) {
		t.Fatalf("期望节点号越界报错, got=%v", err)
	}
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatalf("期望负节点号报错")
	}
}

func TestDecompose_还原节点与时间(t *testing.T) {
	s, _ := NewSnowflake(37)
	before := time.Now().UTC().Truncate(time.Millisecond)
	first := s.NextID()
	second := s.NextID()
	p := Decompose(second)
	if p.NodeID != 37 {
		t.Fatalf("期望节点号 37, got=%d", p.NodeID)
	}
	if p.Time.Before(before) || p.Time.After(time.Now().UTC()) {
		t.Fatalf("期望时间落在生成区间内, got=%v", p.Time)
	}
	if fp := Decompose(first); fp.Time.Equal(p.Time) && p.Seq != fp.Seq+1 {
		t.Fatalf("期望同一毫秒内序列递增, first=%+v second=%+v", fp, p)
	}
}

func TestConfigure_替换默认节点(t *testing.T) {
	t.Cleanup(func() { _ = Configure(DefaultNodeID) })

	if err := Configure(MaxNodeID + 1); !errors.Is(err, ErrNodeOutOfRange) {
		t.Fatalf("期望越界报错, got=%v", err)
	}
	if err := Configure(512); err != nil {
		t.Fatalf("err=%v", err)
	}
	if Default().NodeID() != 512 {
		t.Fatalf("期望默认生成器使用配置节点, got=%d", Default().NodeID())
	}
	if got := Decompose(NextSnowflakeID()).NodeID; got != 512 {
		t.Fatalf("期望生成的标识带配置节点, got=%d", got)
	}
}
