// Package idgen 提供客户端侧的数值主键生成（雪花算法）。
//
// 布局：41 位毫秒时间戳 | 10 位节点 | 12 位序列。
// 节点号来自 tracking.node_id 配置，多进程同时写同一集合时必须互不相同。
package idgen

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// 2024-01-01 00:00:00 UTC，单位毫秒
	epochMilli int64 = 1704067200000

	nodeBits uint8 = 10
	seqBits  uint8 = 12

	MaxNodeID int64 = -1 ^ (-1 << nodeBits)
	maxSeq    int64 = -1 ^ (-1 << seqBits)

	nodeShift = seqBits
	timeShift = nodeBits + seqBits
)

// DefaultNodeID 是未配置节点号时使用的值。
const DefaultNodeID int64 = 1

var ErrNodeOutOfRange = errors.New("snowflake node id out of range")

// Snowflake 是并发安全的单调递增 int64 生成器。
type Snowflake struct {
	mu     sync.Mutex
	nodeID int64
	lastTS int64
	seq    int64
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("%w: %d (0..%d)", ErrNodeOutOfRange, nodeID, MaxNodeID)
	}
	return &Snowflake{nodeID: nodeID}, nil
}

func (s *Snowflake) NodeID() int64 {
	return s.nodeID
}

func (s *Snowflake) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts < s.lastTS {
		// 时钟回拨时沿用上一毫秒，保持单调。
		ts = s.lastTS
	}
	if ts == s.lastTS {
		s.seq = (s.seq + 1) & maxSeq
		if s.seq == 0 {
			for ts <= s.lastTS {
				ts = time.Now().UnixMilli()
			}
		}
	} else {
		s.seq = 0
	}
	s.lastTS = ts
	return ((ts - epochMilli) << timeShift) | (s.nodeID << nodeShift) | s.seq
}

// Parts 是一个雪花标识拆开后的各段，用于日志排查。
type Parts struct {
	Time   time.Time
	NodeID int64
	Seq    int64
}

// Decompose 拆解由本包生成的标识。
func Decompose(id int64) Parts {
	return Parts{
		Time:   time.UnixMilli((id >> timeShift) + epochMilli).UTC(),
		NodeID: (id >> nodeShift) & MaxNodeID,
		Seq:    id & maxSeq,
	}
}

var current atomic.Pointer[Snowflake]

// Configure 用给定节点号替换进程级默认生成器，进程启动读完配置后调用一次。
func Configure(nodeID int64) error {
	s, err := NewSnowflake(nodeID)
	if err != nil {
		return err
	}
	current.Store(s)
	return nil
}

// Default 返回进程级默认生成器，未调用 Configure 时使用 DefaultNodeID。
func Default() *Snowflake {
	if s := current.Load(); s != nil {
		return s
	}
	s, _ := NewSnowflake(DefaultNodeID)
	if current.CompareAndSwap(nil, s) {
		return s
	}
	return current.Load()
}

// NextSnowflakeID 使用进程级默认生成器。
func NextSnowflakeID() int64 {
	return Default().NextID()
}
