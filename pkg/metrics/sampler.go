package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// 断点采样默认值
const (
	DefaultBreakpointInterval = 5 * time.Second
	MinBreakpointInterval     = 100 * time.Millisecond
	DefaultMaxSamples         = 10000
)

// Sampler 断点采样器
// 与工具自身的报告间隔无关，按固定间隔记录当前带宽
//
// 状态: Disabled -> Enable -> Armed -> (Disable或会话结束) -> Disabled
type Sampler struct {
	mu sync.RWMutex

	active   bool
	interval float64 // 秒
	next     float64 // 下一个边界（会话已运行秒数）
	seq      int

	samples    []core.BreakpointSample
	maxSamples int
}

// NewSampler 创建采样器，maxSamples<=0时使用默认值
func NewSampler(maxSamples int) *Sampler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Sampler{maxSamples: maxSamples}
}

// Enable 开启采样，第一个边界为 elapsed+interval
// 会话是否存在由调用方检查；interval<=0时使用默认间隔
func (s *Sampler) Enable(elapsed float64, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultBreakpointInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.interval = interval.Seconds()
	s.next = elapsed + s.interval
}

// Disable 关闭采样，返回本轮所有记录的平均带宽与记录数
func (s *Sampler) Disable() (avgMbps float64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	n = len(s.samples)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, sample := range s.samples {
		sum += sample.BandwidthMbps
	}
	return sum / float64(n), n
}

// Active 是否处于采样状态
func (s *Sampler) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Interval 返回当前采样间隔
func (s *Sampler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.interval * float64(time.Second))
}

// Observe 在每个测量值到达时调用
// 已运行时间达到下一个边界时记录一条样本；即使一次跨过多个边界也只记录一条，
// 但调度会越过所有已跨过的边界
func (s *Sampler) Observe(elapsed, mbps float64, now time.Time) (core.BreakpointSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || elapsed < s.next {
		return core.BreakpointSample{}, false
	}

	s.seq++
	sample := core.BreakpointSample{
		Seq:            s.seq,
		ElapsedSeconds: elapsed,
		BandwidthMbps:  mbps,
		Time:           now,
	}
	s.samples = append(s.samples, sample)
	if n := len(s.samples) - s.maxSamples; n > 0 {
		s.samples = s.samples[n:]
	}

	k := math.Floor((elapsed-s.next)/s.interval) + 1
	s.next += k * s.interval
	if s.next <= elapsed {
		// 浮点误差
		s.next += s.interval
	}
	return sample, true
}

// Samples 返回已记录样本的副本
func (s *Sampler) Samples() []core.BreakpointSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.BreakpointSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Clear 清空已记录的样本，采样状态与调度保持不变
func (s *Sampler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
	s.samples = nil
}

// Reset 关闭采样并清空记录
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.next = 0
	s.seq = 0
	s.samples = nil
}
