// Package session 编排一次测速会话：启动子进程、逐行写入日志、
// 解析测量值、更新统计与断点采样，并把事件分发给所有消费者。
// Manager 是唯一持有这些状态的值，TUI与Web服务共享同一个Manager。
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/broker"
	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/Kevin-Rudy/goiperf/pkg/logstore"
	"github.com/Kevin-Rudy/goiperf/pkg/metrics"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("会话管理器已关闭")

// Manager 会话管理器
type Manager struct {
	config  *Config
	sup     *runner.Supervisor
	store   *logstore.Store
	agg     *metrics.Aggregator
	sampler *metrics.Sampler
	dist    *broker.Distributor
	now     func() time.Time

	mu        sync.Mutex
	status    core.SessionStatus
	current   *session
	summaries []core.Summary
	closed    bool
}

// session 一次运行的私有状态，只被写入协程使用
type session struct {
	id     string
	handle *runner.Handle
	parser metrics.Parser
	start  time.Time
	done   chan struct{}
}

// New 创建会话管理器
func New(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sup, err := runner.NewSupervisor(config.Runner)
	if err != nil {
		return nil, err
	}
	store := logstore.New(config.MaxLines)
	dist, err := broker.New(store, config.Broker)
	if err != nil {
		return nil, err
	}

	return &Manager{
		config:  config,
		sup:     sup,
		store:   store,
		agg:     metrics.NewAggregator(),
		sampler: metrics.NewSampler(config.MaxSamples),
		dist:    dist,
		now:     time.Now,
		status:  core.SessionStatus{State: core.StateIdle},
	}, nil
}

// Start 按测试参数启动一次测试
func (m *Manager) Start(tc *runner.TestConfig) (core.SessionStatus, error) {
	if err := tc.Validate(); err != nil {
		return core.SessionStatus{}, err
	}
	argv := m.config.Runner.BuildCommand(tc)
	return m.start(argv, tc.UDP(), tc.Duration)
}

// StartCommand 按原始命令行启动一次测试
func (m *Manager) StartCommand(argv []string) (core.SessionStatus, error) {
	if len(argv) == 0 {
		return core.SessionStatus{}, fmt.Errorf("%w: 命令不能为空", core.ErrConfigValidation)
	}
	return m.start(argv, runner.IsUDP(argv), durationFromArgs(argv))
}

func (m *Manager) start(argv []string, udp bool, duration int) (core.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.SessionStatus{}, ErrClosed
	}
	if m.status.State.Active() {
		return core.SessionStatus{}, core.ErrAlreadyRunning
	}

	m.agg.Reset()
	m.sampler.Reset()
	m.summaries = nil
	if m.config.ClearOnStart {
		m.store.Clear()
		m.publish(core.Event{Kind: core.EventCleared})
	}

	h, err := m.sup.Start(argv, "")
	if err != nil {
		m.appendLine(fmt.Sprintf("[System Error] %v", err))
		log.Error("启动测试失败", "command", strings.Join(argv, " "), "err", err)
		return core.SessionStatus{}, err
	}

	sess := &session{
		id:     uuid.NewString(),
		handle: h,
		parser: metrics.Parser{UDP: udp},
		start:  h.StartTime(),
		done:   make(chan struct{}),
	}
	m.current = sess
	m.status = core.SessionStatus{
		ID:        sess.id,
		State:     core.StateRunning,
		Command:   h.Argv(),
		UDP:       udp,
		StartTime: sess.start,
		Duration:  duration,
	}

	m.appendLine("--- 开始测试 ---")
	m.appendLine("执行程序: " + argv[0])
	m.appendLine(fmt.Sprintf("参数列表: %v", argv[1:]))
	m.appendLine(fmt.Sprintf("[System] 进程 PID: %d 已启动", h.PID()))

	status := m.statusLocked()
	m.publish(core.Event{Kind: core.EventSessionStarted, Session: &status})
	sessionsStarted.Inc()
	log.Info("测试已启动", "id", sess.id, "pid", h.PID(), "command", strings.Join(argv, " "))

	go m.run(sess)
	return status, nil
}

// run 写入协程：读取行、写入日志、解析、统计、采样、分发
func (m *Manager) run(sess *session) {
	defer close(sess.done)

	lines := sess.handle.Lines()
	var streamErr error
	for {
		text, err := lines.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				streamErr = err
				m.appendLine(fmt.Sprintf("[Error] %v", err))
				// 读取失败后进程的输出无人消费，结束进程
				m.sup.Stop(sess.handle)
			}
			break
		}
		m.handleLine(sess, text)
	}
	lines.Close()

	code, waitErr := m.sup.Wait(sess.handle)
	m.finish(sess, code, errors.Join(streamErr, waitErr))
}

// handleLine 处理一行输出
func (m *Manager) handleLine(sess *session, text string) {
	line := m.appendLine(text)

	if summary, ok := sess.parser.ParseSummary(text); ok {
		m.mu.Lock()
		m.summaries = append(m.summaries, summary)
		m.mu.Unlock()
		return
	}

	metric, ok := sess.parser.Parse(text)
	if !ok {
		return
	}
	m.agg.Observe(metric)
	metricsObserved.Inc()
	lastBandwidth.Set(metric.BandwidthMbps)

	stats := m.agg.Snapshot()
	m.dist.Publish(core.Event{Kind: core.EventMetric, Seq: line.Seq, Time: line.Time, Metric: &metric, Stats: &stats})

	now := m.now()
	elapsed := now.Sub(sess.start).Seconds()
	if sample, ok := m.sampler.Observe(elapsed, metric.BandwidthMbps, now); ok {
		breakpointSamples.Inc()
		m.dist.Publish(core.Event{Kind: core.EventBreakpoint, Seq: line.Seq, Time: now, Sample: &sample})
	}
}

// finish 进程退出后的收尾：断点汇总、测试汇总、状态更新、终止事件
func (m *Manager) finish(sess *session, code int, err error) {
	stats := m.agg.Snapshot()
	m.mu.Lock()
	if m.sampler.Active() {
		if avg, n := m.sampler.Disable(); n > 0 {
			m.appendLine(fmt.Sprintf("--- 记录结束 (平均: %.2f Mbps) ---", avg))
		}
	}
	summaries := append([]core.Summary(nil), m.summaries...)
	udp := m.status.UDP
	m.mu.Unlock()
	for _, line := range summaryReport(stats, summaries, udp) {
		m.appendLine(line)
	}
	m.appendLine(fmt.Sprintf("[System] 进程已退出，退出码: %d", code))

	m.mu.Lock()
	m.status.EndTime = m.now()
	m.status.ExitCode = code
	m.status.Sampling = false
	result := "finished"
	switch {
	case err != nil:
		m.status.State = core.StateFailed
		m.status.Error = err.Error()
		result = "error"
	case code != 0:
		m.status.State = core.StateFailed
		m.status.Error = fmt.Errorf("%w: 退出码 %d", core.ErrPrematureExit, code).Error()
		result = "failed"
	default:
		m.status.State = core.StateFinished
	}
	status := m.statusLocked()
	m.mu.Unlock()

	m.publish(core.Event{Kind: core.EventSessionEnded, Session: &status, Stats: &stats})
	sessionsEnded.WithLabelValues(result).Inc()
	log.Info("测试已结束", "id", sess.id, "state", status.State, "exit_code", code, "avg_mbps", stats.AverageMbps)
}

// Stop 请求停止当前测试，重复调用无副作用
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.status.State.Active() || m.current == nil {
		m.mu.Unlock()
		return core.ErrNoActiveSession
	}
	if m.status.State == core.StateStopping {
		m.mu.Unlock()
		return nil
	}
	m.status.State = core.StateStopping
	h := m.current.handle
	m.mu.Unlock()

	m.appendLine("[User] 请求停止...")
	log.Info("请求停止测试", "pid", h.PID())
	return m.sup.Stop(h)
}

// Clear 清空日志、统计与断点记录，运行中的测试继续
func (m *Manager) Clear() {
	m.store.Clear()
	m.agg.Reset()
	m.sampler.Clear()

	m.mu.Lock()
	m.summaries = nil
	m.mu.Unlock()

	stats := m.agg.Snapshot()
	m.publish(core.Event{Kind: core.EventCleared, Stats: &stats})
	log.Debug("日志与统计已清空")
}

// EnableBreakpoints 开启断点采样，interval<=0使用默认间隔
// 小于 metrics.MinBreakpointInterval 的间隔被拒绝
func (m *Manager) EnableBreakpoints(interval time.Duration) error {
	if interval <= 0 {
		interval = metrics.DefaultBreakpointInterval
	}
	if interval < metrics.MinBreakpointInterval {
		return fmt.Errorf("%w: 采样间隔不能小于%v", core.ErrConfigValidation, metrics.MinBreakpointInterval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.State.Active() {
		return core.ErrNoActiveSession
	}
	m.sampler.Enable(m.now().Sub(m.status.StartTime).Seconds(), interval)
	m.status.Sampling = true
	m.appendLine(fmt.Sprintf("--- 开始记录 (间隔:%gs) ---", interval.Seconds()))
	return nil
}

// DisableBreakpoints 关闭断点采样，返回平均带宽与记录数
func (m *Manager) DisableBreakpoints() (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.State.Active() {
		return 0, 0, core.ErrNoActiveSession
	}
	if !m.sampler.Active() {
		return 0, 0, nil
	}
	avg, n := m.sampler.Disable()
	m.status.Sampling = false
	if n > 0 {
		m.appendLine(fmt.Sprintf("--- 记录结束 (平均: %.2f Mbps) ---", avg))
	}
	return avg, n, nil
}

// Shutdown 停止运行中的测试并关闭所有订阅
// ctx结束前进程仍未退出时返回ctx的错误
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	active := m.status.State.Active()
	var done chan struct{}
	if m.current != nil {
		done = m.current.done
	}
	m.mu.Unlock()

	if active {
		if err := m.Stop(); err != nil && !errors.Is(err, core.ErrNoActiveSession) {
			log.Warn("停止测试失败", "err", err)
		}
	}

	var err error
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	m.dist.Close()
	return err
}

// Status 返回当前会话状态
func (m *Manager) Status() core.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Stats 返回当前统计快照
func (m *Manager) Stats() core.StatsSnapshot {
	return m.agg.Snapshot()
}

// Samples 返回断点记录
func (m *Manager) Samples() []core.BreakpointSample {
	return m.sampler.Samples()
}

// Lines 返回保留的全部日志行
func (m *Manager) Lines() []core.LogLine {
	return m.store.All()
}

// Summaries 返回本次测试解析到的sender/receiver汇总
func (m *Manager) Summaries() []core.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Summary(nil), m.summaries...)
}

// Subscribe 挂载一个消费者，回放最近replay行
func (m *Manager) Subscribe(name string, replay int) *broker.Subscription {
	return m.dist.Attach(name, replay)
}

// Subscribers 当前挂载的消费者数量
func (m *Manager) Subscribers() int {
	return m.dist.Count()
}

// Wait 返回当前会话结束时关闭的通道，没有会话时返回已关闭的通道
func (m *Manager) Wait() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return m.current.done
}

// WorkDir 可执行文件所在目录，保存文件的默认位置
func (m *Manager) WorkDir() string {
	if m.config.Runner.WorkDir != "" {
		return m.config.Runner.WorkDir
	}
	if m.config.Runner.BundleDir != "" {
		return m.config.Runner.BundleDir
	}
	return "."
}

// appendLine 写入日志并唤醒消费者
func (m *Manager) appendLine(text string) core.LogLine {
	line := m.store.Append(text)
	linesAppended.Inc()
	m.dist.Publish(core.LineEvent(line))
	return line
}

// publish 投递派生事件，序列号取当前最后一行
func (m *Manager) publish(ev core.Event) {
	ev.Seq = m.store.LastSeq()
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}
	m.dist.Publish(ev)
}

// statusLocked 返回状态副本，调用方持有锁
func (m *Manager) statusLocked() core.SessionStatus {
	status := m.status
	status.Command = append([]string(nil), m.status.Command...)
	return status
}

// durationFromArgs 从命令行中提取-t/--time的值
func durationFromArgs(argv []string) int {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == "-t" || argv[i] == "--time" {
			if d, err := strconv.Atoi(argv[i+1]); err == nil {
				return d
			}
		}
	}
	return 0
}
