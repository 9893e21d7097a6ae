// Package tui 数据处理模块
package tui

import (
	"fmt"
	"math"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// 曲线名称，也是统计表的行名
const (
	seriesBandwidth = "实时带宽"
	seriesSamples   = "断点采样"
)

// dataPoint 曲线上的一个点
type dataPoint struct {
	Timestamp time.Time
	Value     float64 // Mbps
}

// series 一条带宽曲线及其汇总
type series struct {
	Name    string
	History []dataPoint

	Last float64
	Min  float64
	Max  float64

	// Welford在线算法累加器，历史被截断后仍覆盖全部点
	WelfordCount int
	WelfordMean  float64
	WelfordM2    float64

	Summary map[string]string
}

func newSeries(name string) *series {
	s := &series{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}
	s.updateSummary()
	return s
}

// handleEvents 应用一批事件
func (t *TUI) handleEvents(events []core.Event) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	for _, ev := range events {
		t.applyEvent(ev)
	}
}

// applyEvent 应用单个事件，调用方持有statsMu
func (t *TUI) applyEvent(ev core.Event) {
	switch ev.Kind {
	case core.EventLine:
		if ev.Line != nil {
			t.logLines = appendBounded(t.logLines, ev.Line.String(), t.tuiConfig.MaxLogLines)
		}

	case core.EventMetric:
		if ev.Metric != nil {
			t.addPoint(seriesBandwidth, dataPoint{Timestamp: ev.Time, Value: ev.Metric.BandwidthMbps})
		}
		if ev.Stats != nil {
			t.stats = *ev.Stats
		}

	case core.EventBreakpoint:
		if ev.Sample != nil {
			t.addPoint(seriesSamples, dataPoint{Timestamp: ev.Sample.Time, Value: ev.Sample.BandwidthMbps})
			t.bpLines = appendBounded(t.bpLines, ev.Sample.String(), t.tuiConfig.MaxLogLines)
		}

	case core.EventSessionStarted:
		t.resetSeries()
		t.bpLines = nil
		t.stats = core.StatsSnapshot{}
		t.startTime = ev.Time
		if ev.Session != nil {
			t.status = *ev.Session
			t.startTime = ev.Session.StartTime
		}

	case core.EventSessionEnded:
		if ev.Session != nil {
			t.status = *ev.Session
		}
		if ev.Stats != nil {
			t.stats = *ev.Stats
		}

	case core.EventCleared:
		t.logLines = nil
		t.bpLines = nil
		t.resetSeries()
		t.stats = core.StatsSnapshot{}
		if ev.Stats != nil {
			t.stats = *ev.Stats
		}
	}
}

// resetSeries 清空所有曲线
func (t *TUI) resetSeries() {
	for _, name := range t.identifiers {
		t.series[name] = newSeries(name)
	}
}

// addPoint 插入数据点并更新汇总
func (t *TUI) addPoint(name string, point dataPoint) {
	s, exists := t.series[name]
	if !exists {
		s = newSeries(name)
		t.series[name] = s
	}

	insertDataPointByTime(s, point)
	s.Last = point.Value
	if point.Value < s.Min {
		s.Min = point.Value
	}
	if point.Value > s.Max {
		s.Max = point.Value
	}
	s.updateWelfordAccumulator(point.Value)

	// 维护历史缓冲区大小
	if len(s.History) > t.tuiConfig.MaxHistorySize {
		s.History = s.History[len(s.History)-t.tuiConfig.MaxHistorySize:]
	}

	s.updateSummary()
}

// insertDataPointByTime 按时间戳插入数据点到历史记录中
func insertDataPointByTime(s *series, newPoint dataPoint) {
	// 常见情况：按时间顺序到达
	if len(s.History) == 0 || !newPoint.Timestamp.Before(s.History[len(s.History)-1].Timestamp) {
		s.History = append(s.History, newPoint)
		return
	}

	// 需要在中间插入，使用二分查找找到插入位置
	left, right := 0, len(s.History)
	for left < right {
		mid := (left + right) / 2
		if s.History[mid].Timestamp.Before(newPoint.Timestamp) {
			left = mid + 1
		} else {
			right = mid
		}
	}

	s.History = append(s.History, dataPoint{})
	copy(s.History[left+1:], s.History[left:])
	s.History[left] = newPoint
}

// updateWelfordAccumulator 使用Welford在线算法更新统计累加器
func (s *series) updateWelfordAccumulator(newValue float64) {
	s.WelfordCount++
	delta := newValue - s.WelfordMean
	s.WelfordMean += delta / float64(s.WelfordCount)
	delta2 := newValue - s.WelfordMean
	s.WelfordM2 += delta * delta2
}

// 统计表的列，按显示顺序
var summaryKeys = []string{"点数", "当前", "平均", "峰值", "最低", "标准差"}

// updateSummary 更新汇总统计信息
func (s *series) updateSummary() {
	summary := make(map[string]string, len(summaryKeys))
	summary["点数"] = fmt.Sprintf("%d", s.WelfordCount)

	if s.WelfordCount == 0 {
		for _, key := range summaryKeys[1:] {
			summary[key] = "N/A"
		}
		s.Summary = summary
		return
	}

	summary["当前"] = formatBandwidth(s.Last)
	summary["平均"] = formatBandwidth(s.WelfordMean)
	summary["峰值"] = formatBandwidth(s.Max)
	summary["最低"] = formatBandwidth(s.Min)
	summary["标准差"] = "N/A"
	if s.WelfordCount > 1 {
		summary["标准差"] = formatBandwidth(math.Sqrt(s.WelfordM2 / float64(s.WelfordCount-1)))
	}
	s.Summary = summary
}

// appendBounded 追加一行，超出上限时丢弃最旧的
func appendBounded(lines []string, line string, max int) []string {
	lines = append(lines, line)
	if len(lines) > max {
		lines = append(lines[:0:0], lines[len(lines)-max:]...)
	}
	return lines
}

// setMessage 设置底栏提示
func (t *TUI) setMessage(msg string) {
	t.statsMu.Lock()
	t.message = msg
	t.statsMu.Unlock()
}
