package core

import "time"

// EventKind 事件类型
type EventKind string

const (
	EventLine           EventKind = "line"            // 新的日志行
	EventMetric         EventKind = "metric"          // 从日志行解析出的测量值
	EventBreakpoint     EventKind = "breakpoint"      // 断点采样记录
	EventSessionStarted EventKind = "session_started" // 会话开始
	EventSessionEnded   EventKind = "session_ended"   // 会话结束（终止事件）
	EventCleared        EventKind = "cleared"         // 日志与统计被清空
)

// Event 是写入方投递给每个消费者的类型化消息
// Seq 是产生该事件时对应的日志序列号，用于保证消费者侧的顺序
type Event struct {
	Kind    EventKind         `json:"kind"`
	Seq     uint64            `json:"seq"`
	Time    time.Time         `json:"time"`
	Line    *LogLine          `json:"line,omitempty"`
	Metric  *Metric           `json:"metric,omitempty"`
	Sample  *BreakpointSample `json:"sample,omitempty"`
	Session *SessionStatus    `json:"session,omitempty"`
	Stats   *StatsSnapshot    `json:"stats,omitempty"`
}

// LineEvent 将日志行包装为事件
func LineEvent(line LogLine) Event {
	return Event{
		Kind: EventLine,
		Seq:  line.Seq,
		Time: line.Time,
		Line: &line,
	}
}

// Terminal 判断事件是否为会话终止事件
func (e Event) Terminal() bool {
	return e.Kind == EventSessionEnded
}
