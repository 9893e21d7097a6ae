// Package tui 提供终端用户界面
// 作为事件流的一个消费者：显示运行日志、实时统计、带宽曲线与断点采样记录
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/broker"
	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/rivo/tview"
)

// Controller TUI依赖的会话操作，由session.Manager实现
type Controller interface {
	StartCommand(argv []string) (core.SessionStatus, error)
	Stop() error
	Clear()
	EnableBreakpoints(interval time.Duration) error
	DisableBreakpoints() (float64, int, error)
	Status() core.SessionStatus
	Lines() []core.LogLine
	Samples() []core.BreakpointSample
	Subscribe(name string, replay int) *broker.Subscription
	WorkDir() string
}

// TUI 主界面结构
type TUI struct {
	app       *tview.Application
	flex      *tview.Flex
	header    *tview.TextView
	statsFlex *tview.Flex
	rowFlexes []*tview.Flex
	chart     *tview.TextView
	logView   *tview.TextView
	bpView    *tview.TextView
	footer    *tview.TextView

	ctl  Controller
	argv []string // r 键重新运行的命令
	sub  *broker.Subscription

	// 配置信息
	tuiConfig *Config

	// 数据存储
	statsMu  sync.RWMutex
	series   map[string]*series
	stats    core.StatsSnapshot
	status   core.SessionStatus
	logLines []string
	bpLines  []string
	message  string

	// 界面状态
	selectedRow int
	identifiers []string
	nav         navThrottle

	// 控制
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}

	// 测试模式标志
	testMode bool

	// 时间管理
	startTime time.Time // 当前会话开始时间，用于时间窗口计算
}

// NewTUI 创建新的TUI实例，argv为空时只显示已有数据，按r无效
func NewTUI(ctl Controller, argv []string, tuiConfig *Config) *TUI {
	tui := newTUI(ctl, argv, tuiConfig)
	tui.app = tview.NewApplication()
	tui.chart = tview.NewTextView()

	tui.setupUI()
	tui.setupKeyBindings()

	return tui
}

// NewTUIForTest 创建用于测试的TUI实例（不初始化图形组件）
func NewTUIForTest(ctl Controller, argv []string, tuiConfig *Config) *TUI {
	tui := newTUI(ctl, argv, tuiConfig)
	tui.app = tview.NewApplication() // 创建一个应用实例，但不会运行
	tui.testMode = true
	return tui
}

func newTUI(ctl Controller, argv []string, tuiConfig *Config) *TUI {
	if tuiConfig == nil {
		tuiConfig = DefaultConfig()
	}
	t := &TUI{
		ctl:         ctl,
		argv:        argv,
		tuiConfig:   tuiConfig,
		series:      make(map[string]*series),
		identifiers: []string{seriesBandwidth, seriesSamples},
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		selectedRow: -1, // 默认全选状态
		startTime:   time.Now(),
	}
	t.resetSeries()
	return t
}

// Run 订阅事件流，启动测试并运行界面，直到用户退出
func (t *TUI) Run() error {
	t.attach()
	if len(t.argv) > 0 {
		// 启动失败的原因会写入日志，这里只需提示
		if _, err := t.ctl.StartCommand(t.argv); err != nil {
			t.setMessage("启动失败: " + err.Error())
		}
	}

	// 启动数据处理goroutine
	go t.processData()

	// 运行应用
	err := t.app.Run()

	// 确保清理工作完成
	t.Stop()
	<-t.doneChan

	return err
}

// attach 挂载为事件流的消费者，回放最近的日志
func (t *TUI) attach() {
	t.sub = t.ctl.Subscribe("tui", t.tuiConfig.MaxLogLines)
}

// Stop 停止TUI界面，不影响正在运行的测试
func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.sub != nil {
			t.sub.Close()
		}
		t.app.Stop()
	})
}

// processData 消费事件并按固定间隔刷新界面
func (t *TUI) processData() {
	defer close(t.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	eventChan := make(chan []core.Event)
	pumpDone := make(chan struct{})
	go t.pumpEvents(ctx, eventChan, pumpDone)
	defer func() {
		cancel()
		<-pumpDone
	}()

	uiTicker := time.NewTicker(t.tuiConfig.RefreshInterval)
	defer uiTicker.Stop()

	// 初始UI刷新
	t.forceInitialDraw()

	for {
		select {
		case events, ok := <-eventChan:
			if !ok {
				// 订阅已关闭，界面保持到用户退出
				eventChan = nil
				continue
			}
			t.handleEvents(events)

		case <-uiTicker.C:
			t.handleUIRefresh()

		case <-t.stopChan:
			return
		}
	}
}

// pumpEvents 把阻塞的Next转成通道，供processData统一select
func (t *TUI) pumpEvents(ctx context.Context, out chan<- []core.Event, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	for {
		events, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		select {
		case out <- events:
		case <-ctx.Done():
			return
		}
	}
}

// forceInitialDraw 强制初始绘制
func (t *TUI) forceInitialDraw() {
	if !t.testMode && t.app != nil {
		t.app.QueueUpdateDraw(func() {
			t.rebuildUI()
		})
	}
}

// handleUIRefresh 处理UI刷新
func (t *TUI) handleUIRefresh() {
	if !t.testMode && t.app != nil {
		t.safeUIUpdate(func() {
			t.rebuildUI()
			t.updateChart()
		})
	}
}
