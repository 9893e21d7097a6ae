package broker

import (
	"context"
	"sort"
	"sync"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// Subscription 一个消费者的订阅，实现core.Subscription
type Subscription struct {
	id   string
	name string
	d    *Distributor

	mu      sync.Mutex
	cursor  uint64       // 已交付的最后一行序列号
	pending []core.Event // 尚未交付的派生事件
	dropped uint64

	wake      chan struct{} // 容量为1，合并多次唤醒
	done      chan struct{}
	closeOnce sync.Once
}

var _ core.Subscription = (*Subscription)(nil)

// ID 订阅标识
func (s *Subscription) ID() string {
	return s.id
}

// Name 消费者名称
func (s *Subscription) Name() string {
	return s.name
}

// Dropped 因队列满被丢弃的派生事件数
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Done 订阅关闭后关闭的通道
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close 解除挂载
func (s *Subscription) Close() {
	s.d.Detach(s)
}

// Next 阻塞直到有新事件、ctx结束或订阅关闭
// 每行恰好交付一次，按序列号递增；派生事件紧跟在产生它的行之后
func (s *Subscription) Next(ctx context.Context) ([]core.Event, error) {
	for {
		select {
		case <-s.done:
			return nil, core.ErrDetached
		default:
		}

		if batch := s.collect(); len(batch) > 0 {
			return batch, nil
		}

		select {
		case <-s.done:
			return nil, core.ErrDetached
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.wake:
		}
	}
}

// collect 读取游标之后的行并与派生事件合并
func (s *Subscription) collect() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.d.config.BatchSize
	lines, last := s.d.store.ReadSince(s.cursor, limit)

	if len(lines) == limit && lines[len(lines)-1].Seq < last {
		// 还有未读的行，先交付这一批，下次继续
		s.cursor = lines[len(lines)-1].Seq
		s.notify()
	} else if last > s.cursor {
		// 已追上写入方；被清空或淘汰的区间直接跳过
		s.cursor = last
	}

	if len(lines) == 0 && len(s.pending) == 0 {
		return nil
	}

	// 只交付对应行已经交付的派生事件
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].Seq < s.pending[j].Seq
	})
	n := 0
	for n < len(s.pending) && s.pending[n].Seq <= s.cursor {
		n++
	}
	ready := s.pending[:n]

	out := make([]core.Event, 0, len(lines)+len(ready))
	i, j := 0, 0
	for i < len(lines) || j < len(ready) {
		if j >= len(ready) || (i < len(lines) && lines[i].Seq <= ready[j].Seq) {
			out = append(out, core.LineEvent(lines[i]))
			i++
		} else {
			out = append(out, ready[j])
			j++
		}
	}

	rest := make([]core.Event, len(s.pending)-n)
	copy(rest, s.pending[n:])
	s.pending = rest
	return out
}

// enqueue 加入派生事件，队列满时丢弃最旧的
func (s *Subscription) enqueue(ev core.Event, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= max {
		drop := len(s.pending) - max + 1
		s.pending = s.pending[drop:]
		s.dropped += uint64(drop)
		droppedEvents.Add(float64(drop))
	}
	s.pending = append(s.pending, ev)
}

// notify 非阻塞唤醒
func (s *Subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
