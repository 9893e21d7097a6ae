package metrics

import (
	"math"
	"sync"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// Aggregator 当前会话的运行统计
// 只有写入循环调用Observe/Reset，任意消费者都可以读取快照
type Aggregator struct {
	mu sync.RWMutex

	count   int
	sumMbps float64
	maxMbps float64
	minMbps float64

	// Welford在线算法所需的累加器
	welfordMean float64
	welfordM2   float64

	jitterSum   float64
	jitterCount int
	lost        int
	total       int
	retransmits int
}

// NewAggregator 创建一个空的统计累加器
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.reset()
	return a
}

// Observe 用一个测量值更新统计
func (a *Aggregator) Observe(m core.Metric) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	a.sumMbps += m.BandwidthMbps
	if m.BandwidthMbps > a.maxMbps {
		a.maxMbps = m.BandwidthMbps
	}
	if m.BandwidthMbps < a.minMbps {
		a.minMbps = m.BandwidthMbps
	}
	a.updateWelford(m.BandwidthMbps)

	if m.JitterMs != nil {
		a.jitterSum += *m.JitterMs
		a.jitterCount++
	}
	if m.LostPackets != nil && m.TotalPackets != nil {
		a.lost += *m.LostPackets
		a.total += *m.TotalPackets
	}
	if m.Retransmits != nil {
		a.retransmits += *m.Retransmits
	}
}

// updateWelford 使用Welford在线算法更新方差累加器
func (a *Aggregator) updateWelford(value float64) {
	delta := value - a.welfordMean
	a.welfordMean += delta / float64(a.count)
	delta2 := value - a.welfordMean
	a.welfordM2 += delta * delta2
}

// Snapshot 返回当前统计的只读快照，所有除法都做了零值保护
func (a *Aggregator) Snapshot() core.StatsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := core.StatsSnapshot{
		Count:         a.count,
		JitterSamples: a.jitterCount,
		LostPackets:   a.lost,
		TotalPackets:  a.total,
		Retransmits:   a.retransmits,
	}
	if a.count > 0 {
		s.AverageMbps = a.sumMbps / float64(a.count)
		s.MaxMbps = a.maxMbps
		s.MinMbps = a.minMbps
	}
	if a.count > 1 {
		s.StdDevMbps = math.Sqrt(a.welfordM2 / float64(a.count-1))
	}
	if a.jitterCount > 0 {
		s.AverageJitterMs = a.jitterSum / float64(a.jitterCount)
	}
	if a.total > 0 {
		s.LossRate = float64(a.lost) / float64(a.total)
	}
	return s
}

// Reset 清空统计，只在会话开始（或显式清空）时调用
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Aggregator) reset() {
	a.count = 0
	a.sumMbps = 0
	a.maxMbps = math.Inf(-1)
	a.minMbps = math.Inf(1)
	a.welfordMean = 0
	a.welfordM2 = 0
	a.jitterSum = 0
	a.jitterCount = 0
	a.lost = 0
	a.total = 0
	a.retransmits = 0
}
