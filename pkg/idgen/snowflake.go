package idgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 提交记录号和 outbox 事件 ID 都基于它生成：
//
//   0 - 41位毫秒时间戳 - 10位实例ID - 12位序列号
//
// 实例 ID 来自 server.worker_id，多实例部署时必须互不相同。
// 时钟回拨不超过 maxBackwardWait 时等待追平，超过则拒绝生成。
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits

	maxBackwardWait = 5 * time.Millisecond
)

var (
	ErrInvalidWorkerID = fmt.Errorf("worker_id 必须在 0-%d 之间", maxWorkerID)
	ErrClockBackwards  = errors.New("系统时钟回拨，拒绝生成 ID")
)

// Generator 单实例内并发安全
type Generator struct {
	mu       sync.Mutex
	workerID int64
	lastMs   int64
	sequence int64
	now      func() int64
}

func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		if time.Duration(g.lastMs-ms)*time.Millisecond > maxBackwardWait {
			return 0, ErrClockBackwards
		}
		for ms < g.lastMs {
			ms = g.now()
		}
	}

	if ms == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for ms <= g.lastMs {
				ms = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return ((ms - epoch) << timestampShift) | (g.workerID << workerIDShift) | g.sequence, nil
}

var (
	mu        sync.Mutex
	generator *Generator
)

// Init 设置进程级生成器，服务启动时调用一次
func Init(workerID int64) error {
	g, err := NewGenerator(workerID)
	if err != nil {
		return err
	}
	mu.Lock()
	generator = g
	mu.Unlock()
	return nil
}

func defaultGenerator() *Generator {
	mu.Lock()
	defer mu.Unlock()
	if generator == nil {
		// 命令行和测试未调用 Init 时使用实例 1
		generator, _ = NewGenerator(1)
	}
	return generator
}

// NextID 时钟回拨超出容忍范围时 panic，由 RecoveryMiddleware 兜底
func NextID() int64 {
	id, err := defaultGenerator().Next()
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateEntryNo 提交记录号：ENT + 年月日时分秒 + ID 低 8 位
func GenerateEntryNo() string {
	return format("ENT", NextID())
}

// GenerateEventNo outbox 事件 ID，消费方用于去重
func GenerateEventNo() string {
	return format("EVT", NextID())
}

func format(prefix string, id int64) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(time.Now().Format("20060102150405"))
	low := strconv.FormatInt(id%100000000, 10)
	b.WriteString(strings.Repeat("0", 8-len(low)))
	b.WriteString(low)
	return b.String()
}
