// Package core 定义了测速编排框架的核心数据结构和接口
// 这些类型保证了子进程、日志存储与各个消费者（TUI、Web客户端）之间的完全解耦
package core

import (
	"context"
	"fmt"
	"math"
	"time"
)

// LogLine 表示子进程输出的一行文本
// 一旦追加到日志存储中就不可变
type LogLine struct {
	Seq  uint64    `json:"seq"`  // 单调递增的序列号，从1开始
	Text string    `json:"text"` // 原始文本（已去除行尾换行符）
	Time time.Time `json:"time"` // 到达时间
}

// String 返回带时间戳前缀的行文本
func (l LogLine) String() string {
	return fmt.Sprintf("[%s] %s", l.Time.Format("2006-01-02 15:04:05"), l.Text)
}

// Metric 表示从一行输出中提取的测量值
// 可选字段为nil表示该行不包含对应数据
type Metric struct {
	BandwidthMbps float64  `json:"bandwidth_mbps"`
	JitterMs      *float64 `json:"jitter_ms,omitempty"`
	LostPackets   *int     `json:"lost_packets,omitempty"`
	TotalPackets  *int     `json:"total_packets,omitempty"`
	Retransmits   *int     `json:"retransmits,omitempty"`
	IntervalStart *float64 `json:"interval_start,omitempty"` // 报告区间起点(s)
	IntervalEnd   *float64 `json:"interval_end,omitempty"`   // 报告区间终点(s)
}

// SummaryRole 汇总行的角色
type SummaryRole string

const (
	RoleSender   SummaryRole = "sender"
	RoleReceiver SummaryRole = "receiver"
)

// Summary 表示测试结束时工具输出的发送端/接收端汇总行
type Summary struct {
	Role      SummaryRole `json:"role"`
	Aggregate bool        `json:"aggregate"` // 多流时的[SUM]汇总行
	Metric    Metric      `json:"metric"`
}

// StatsSnapshot 是运行统计的只读快照
type StatsSnapshot struct {
	Count           int     `json:"count"`
	AverageMbps     float64 `json:"average_mbps"`
	MaxMbps         float64 `json:"max_mbps"`
	MinMbps         float64 `json:"min_mbps"`
	StdDevMbps      float64 `json:"stddev_mbps"`
	AverageJitterMs float64 `json:"average_jitter_ms"`
	JitterSamples   int     `json:"jitter_samples"`
	LostPackets     int     `json:"lost_packets"`
	TotalPackets    int     `json:"total_packets"`
	LossRate        float64 `json:"loss_rate"` // 丢包比例，0~1
	Retransmits     int     `json:"retransmits"`
}

// BreakpointSample 断点采样记录
type BreakpointSample struct {
	Seq            int       `json:"sequence"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	BandwidthMbps  float64   `json:"bandwidth_mbps"`
	Time           time.Time `json:"wall_clock_time"`
}

// String 返回断点记录的文本形式
func (s BreakpointSample) String() string {
	return fmt.Sprintf("[%s] T:%.1fs BW:%.2f Mbps", s.Time.Format("15:04:05"), s.ElapsedSeconds, s.BandwidthMbps)
}

// SessionState 表示测试会话的状态
type SessionState int

const (
	StateIdle     SessionState = iota // 尚未启动
	StateRunning                      // 正在运行
	StateStopping                     // 已请求停止，等待进程退出
	StateFinished                     // 正常结束
	StateFailed                       // 异常结束（非零退出码或读取错误）
)

// String 返回状态名称
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText 让状态以名称形式编码到JSON中
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 从名称解析状态
func (s *SessionState) UnmarshalText(text []byte) error {
	for state := StateIdle; state <= StateFailed; state++ {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("未知的会话状态: %q", text)
}

// Active 判断该状态下是否有子进程存活
func (s SessionState) Active() bool {
	return s == StateRunning || s == StateStopping
}

// SessionStatus 描述一次测试会话
type SessionStatus struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	Command   []string     `json:"command,omitempty"`
	UDP       bool         `json:"udp"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	ExitCode  int          `json:"exit_code"`
	Error     string       `json:"error,omitempty"`
	Sampling  bool         `json:"sampling"`           // 断点采样是否开启
	Duration  int          `json:"duration,omitempty"` // 计划测试时长(s)，0表示未知
}

// Elapsed 返回会话已运行的秒数
func (s SessionStatus) Elapsed(now time.Time) float64 {
	if s.StartTime.IsZero() {
		return 0
	}
	end := now
	if !s.State.Active() && !s.EndTime.IsZero() {
		end = s.EndTime
	}
	return end.Sub(s.StartTime).Seconds()
}

// Progress 返回测试进度，0~1，计划时长未知时为0
func (s SessionStatus) Progress(now time.Time) float64 {
	if s.State == StateFinished {
		return 1
	}
	if s.Duration <= 0 {
		return 0
	}
	return math.Min(s.Elapsed(now)/float64(s.Duration), 1)
}

// Subscription 表示一个已挂载的消费者
// 每个消费者拥有独立的游标，Next 返回自上次读取以来的新事件
type Subscription interface {
	// ID 返回消费者的唯一标识
	ID() string

	// Next 阻塞直到有新事件、ctx结束或订阅被关闭
	// 同一个Subscription不支持并发调用Next
	Next(ctx context.Context) ([]Event, error)

	// Close 解除挂载，可以与投递并发调用，可重复调用
	Close()
}
