// Package logstore 提供有界、带序列号、只追加的日志缓冲区
// 单写者（子进程读取循环）多读者（各个消费者），读取总是返回快照
package logstore

import (
	"sync"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// 默认容量
const (
	DefaultMaxLines    = 5000  // 主日志
	DefaultReplayLines = 10000 // 流式推送的回放队列
)

// Store 日志存储
type Store struct {
	mu      sync.RWMutex
	lines   []core.LogLine // 按序列号升序，序列号在窗口内连续
	lastSeq uint64         // 最后分配的序列号，Clear后不回退
	max     int            // 最大保留行数
	now     func() time.Time
}

// New 创建日志存储，max<=0时使用默认容量
func New(max int) *Store {
	if max <= 0 {
		max = DefaultMaxLines
	}
	return &Store{
		lines: make([]core.LogLine, 0, 64),
		max:   max,
		now:   time.Now,
	}
}

// Append 分配下一个序列号并保存该行，超出容量时按FIFO淘汰最旧的行
func (s *Store) Append(text string) core.LogLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeq++
	line := core.LogLine{
		Seq:  s.lastSeq,
		Text: text,
		Time: s.now(),
	}
	s.lines = append(s.lines, line)
	s.evict()
	return line
}

// evict 淘汰超出容量的最旧行
// 前端切片后，被淘汰的元素在下一次append扩容时随旧数组一起释放
func (s *Store) evict() {
	if n := len(s.lines) - s.max; n > 0 {
		s.lines = s.lines[n:]
	}
}

// Read 返回所有序列号 >= from 的保留行
// 如果from早于最旧的保留行，则从最旧的行开始返回（不报错，不补洞）
func (s *Store) Read(from uint64) []core.LogLine {
	return s.ReadN(from, 0)
}

// ReadN 与Read相同，但最多返回limit行，limit<=0表示不限
func (s *Store) ReadN(from uint64, limit int) []core.LogLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.lines) == 0 || from > s.lastSeq {
		return nil
	}
	oldest := s.lines[0].Seq
	idx := 0
	if from > oldest {
		idx = int(from - oldest)
	}
	end := len(s.lines)
	if limit > 0 && idx+limit < end {
		end = idx + limit
	}
	out := make([]core.LogLine, end-idx)
	copy(out, s.lines[idx:end])
	return out
}

// ReadSince 返回序列号 > after 的保留行（最多limit行）以及同一时刻的最后序列号
// 两者在同一把锁下读取，调用方可据此判断是否已追上写入方
func (s *Store) ReadSince(after uint64, limit int) ([]core.LogLine, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.lines) == 0 || after >= s.lastSeq {
		return nil, s.lastSeq
	}
	oldest := s.lines[0].Seq
	idx := 0
	if after+1 > oldest {
		idx = int(after + 1 - oldest)
	}
	end := len(s.lines)
	if limit > 0 && idx+limit < end {
		end = idx + limit
	}
	out := make([]core.LogLine, end-idx)
	copy(out, s.lines[idx:end])
	return out, s.lastSeq
}

// Last 返回最近的n行（不足n行时返回全部）
func (s *Store) Last(n int) []core.LogLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.lines) == 0 {
		return nil
	}
	if n > len(s.lines) {
		n = len(s.lines)
	}
	out := make([]core.LogLine, n)
	copy(out, s.lines[len(s.lines)-n:])
	return out
}

// All 返回全部保留行
func (s *Store) All() []core.LogLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.LogLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// ReplayCursor 返回一个游标，从该游标读取恰好能得到最近的n行
func (s *Store) ReplayCursor(n int) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.lines) == 0 {
		return s.lastSeq
	}
	if n > len(s.lines) {
		n = len(s.lines)
	}
	return s.lines[len(s.lines)-n].Seq - 1
}

// LastSeq 返回最后分配的序列号，没有任何追加时为0
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// OldestSeq 返回最旧保留行的序列号，存储为空时为0
func (s *Store) OldestSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.lines) == 0 {
		return 0
	}
	return s.lines[0].Seq
}

// Len 返回保留的行数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Cap 返回最大保留行数
func (s *Store) Cap() int {
	return s.max
}

// Clear 清空保留的行，序列号继续递增，已有游标不会被混淆
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make([]core.LogLine, 0, 64)
}
