// Package tui 交互控制模块
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/Kevin-Rudy/goiperf/pkg/export"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// navThrottle 导航事件频率控制，连续按键达到阈值后休息一段时间
type navThrottle struct {
	counter   int
	threshold int
	rest      time.Duration
	resting   bool
	last      time.Time
}

// allow 判断是否应该处理导航事件
func (n *navThrottle) allow(now time.Time) bool {
	if !n.resting {
		return true
	}
	if now.Sub(n.last) >= n.rest {
		n.resting = false
		n.counter = 0
		return true
	}
	return false
}

// record 记录导航事件
func (n *navThrottle) record(now time.Time) {
	if n.threshold == 0 {
		n.threshold = 5
		n.rest = 100 * time.Millisecond
	}
	n.counter++
	n.last = now
	if n.counter >= n.threshold {
		n.resting = true
	}
}

// setupKeyBindings 设置键盘绑定
func (t *TUI) setupKeyBindings() {
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			t.Stop()
			return nil
		case tcell.KeyRune:
			if t.handleRune(event.Rune()) {
				return nil
			}
		case tcell.KeyUp:
			if now := time.Now(); t.nav.allow(now) {
				t.navigateUp()
				t.nav.record(now)
			}
			return nil
		case tcell.KeyDown:
			if now := time.Now(); t.nav.allow(now) {
				t.navigateDown()
				t.nav.record(now)
			}
			return nil
		}
		return event
	})
}

// handleRune 处理字符按键，返回是否已处理
func (t *TUI) handleRune(r rune) bool {
	switch r {
	case 'q', 'Q':
		t.Stop()
	case 'x':
		t.stopTest()
	case 'r':
		t.rerun()
	case 'c':
		t.ctl.Clear()
		t.setMessage("已清空")
	case 'b':
		t.toggleSampling()
	case 's':
		t.saveLog()
	case 'S':
		t.saveSamples()
	default:
		return false
	}
	return true
}

// stopTest 停止运行中的测试
func (t *TUI) stopTest() {
	if err := t.ctl.Stop(); err != nil {
		t.setMessage(describe(err))
		return
	}
	t.setMessage("正在停止...")
}

// rerun 用相同的命令重新运行
func (t *TUI) rerun() {
	if len(t.argv) == 0 {
		t.setMessage("没有可重新运行的命令")
		return
	}
	if _, err := t.ctl.StartCommand(t.argv); err != nil {
		t.setMessage(describe(err))
		return
	}
	t.setMessage("已重新运行")
}

// toggleSampling 开启或关闭断点采样
func (t *TUI) toggleSampling() {
	if t.ctl.Status().Sampling {
		avg, n, err := t.ctl.DisableBreakpoints()
		if err != nil {
			t.setMessage(describe(err))
			return
		}
		t.setMessage(fmt.Sprintf("采样结束: %d 条, 平均 %.2f Mbps", n, avg))
		return
	}

	interval := t.tuiConfig.BreakpointInterval
	if err := t.ctl.EnableBreakpoints(interval); err != nil {
		t.setMessage(describe(err))
		return
	}
	t.setMessage(fmt.Sprintf("开始采样 (间隔 %gs)", interval.Seconds()))
}

// saveLog 保存主日志到工作目录
func (t *TUI) saveLog() {
	path, err := export.SaveLog(t.ctl.WorkDir(), t.ctl.Lines(), time.Now())
	if err != nil {
		t.setMessage("保存日志失败: " + err.Error())
		return
	}
	t.setMessage("日志已保存: " + path)
}

// saveSamples 保存断点记录到工作目录
func (t *TUI) saveSamples() {
	samples := t.ctl.Samples()
	if len(samples) == 0 {
		t.setMessage("没有断点记录")
		return
	}
	path, err := export.SaveSamples(t.ctl.WorkDir(), samples, time.Now())
	if err != nil {
		t.setMessage("保存断点记录失败: " + err.Error())
		return
	}
	t.setMessage("断点记录已保存: " + path)
}

// describe 操作失败的提示文字
func describe(err error) string {
	switch {
	case errors.Is(err, core.ErrNoActiveSession):
		return "当前没有运行中的测试"
	case errors.Is(err, core.ErrAlreadyRunning):
		return "测试已在运行中"
	default:
		return err.Error()
	}
}

// navigateUp 向上导航：全部 -> 最后一条曲线 -> ... -> 全部
func (t *TUI) navigateUp() {
	t.statsMu.Lock()
	switch {
	case t.selectedRow == -1:
		t.selectedRow = len(t.identifiers) - 1
	case t.selectedRow > 0:
		t.selectedRow--
	default:
		t.selectedRow = -1
	}
	t.statsMu.Unlock()

	if !t.testMode {
		t.updateSelection()
		t.updateChart()
	}
}

// navigateDown 向下导航：全部 -> 第一条曲线 -> ... -> 全部
func (t *TUI) navigateDown() {
	t.statsMu.Lock()
	switch {
	case t.selectedRow == -1:
		t.selectedRow = 0
	case t.selectedRow < len(t.identifiers)-1:
		t.selectedRow++
	default:
		t.selectedRow = -1
	}
	t.statsMu.Unlock()

	if !t.testMode {
		t.updateSelection()
		t.updateChart()
	}
}

// updateSelection 高亮选中的曲线行
func (t *TUI) updateSelection() {
	if t.testMode || len(t.rowFlexes) == 0 {
		return
	}

	for i, rowFlex := range t.rowFlexes {
		color := tcell.ColorDefault
		if i > 0 && t.selectedRow == i-1 { // -1 因为表头行占用了索引0
			color = tcell.ColorDarkCyan
		}
		for j := 0; j < rowFlex.GetItemCount(); j++ {
			if textView, ok := rowFlex.GetItem(j).(*tview.TextView); ok {
				textView.SetBackgroundColor(color)
			}
		}
	}
}
