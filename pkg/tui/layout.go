// Package tui 布局管理模块
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const keyHelp = "[yellow]q[white] 退出  [yellow]x[white] 停止  [yellow]r[white] 重新运行  [yellow]c[white] 清空  " +
	"[yellow]b[white] 断点采样  [yellow]s[white] 保存日志  [yellow]S[white] 保存断点  [yellow]↑↓[white] 切换曲线"

// setupUI 设置用户界面布局
func (t *TUI) setupUI() {
	t.header = tview.NewTextView()
	t.header.SetDynamicColors(true)

	t.statsFlex = tview.NewFlex()
	t.statsFlex.SetDirection(tview.FlexRow)

	t.chart.SetWordWrap(false)
	t.chart.SetDynamicColors(true)
	t.chart.SetText("[yellow]等待数据...[white]")

	// 日志内容来自子进程，不解析颜色标签
	t.logView = tview.NewTextView()
	t.logView.SetDynamicColors(false)
	t.logView.SetBorder(true)
	t.logView.SetTitle(" 运行日志 ")
	t.logView.SetTitleAlign(tview.AlignLeft)

	t.bpView = tview.NewTextView()
	t.bpView.SetDynamicColors(false)
	t.bpView.SetBorder(true)
	t.bpView.SetTitle(" 断点采样记录 ")
	t.bpView.SetTitleAlign(tview.AlignLeft)

	t.footer = tview.NewTextView()
	t.footer.SetDynamicColors(true)

	panels := tview.NewFlex()
	panels.SetDirection(tview.FlexColumn)
	panels.AddItem(t.logView, 0, 3, false)
	panels.AddItem(t.bpView, 0, 1, false)

	t.flex = tview.NewFlex()
	t.flex.SetDirection(tview.FlexRow)
	t.flex.AddItem(t.header, 1, 0, false)
	t.flex.AddItem(t.statsFlex, len(t.identifiers)+1, 0, false)
	t.flex.AddItem(t.chart, t.tuiConfig.ChartHeight, 0, false)
	t.flex.AddItem(panels, 0, 1, false)
	t.flex.AddItem(t.footer, 1, 0, false)

	t.app.SetRoot(t.flex, true)
}

// rebuildUI 用最新数据刷新文字组件
func (t *TUI) rebuildUI() {
	if t.testMode {
		return
	}

	t.statsMu.RLock()
	defer t.statsMu.RUnlock()

	t.header.SetText(t.headerText(time.Now()))
	t.footer.SetText(t.footerText())

	t.statsFlex.Clear()
	t.rowFlexes = t.rowFlexes[:0]
	headerFlex := t.createHeaderRow()
	t.statsFlex.AddItem(headerFlex, 1, 0, false)
	t.rowFlexes = append(t.rowFlexes, headerFlex)
	for _, name := range t.identifiers {
		rowFlex := t.createDataRow(name)
		t.statsFlex.AddItem(rowFlex, 1, 0, false)
		t.rowFlexes = append(t.rowFlexes, rowFlex)
	}
	t.updateSelection()

	t.logView.SetText(strings.Join(t.logLines, "\n"))
	t.logView.ScrollToEnd()
	t.bpView.SetText(strings.Join(t.bpLines, "\n"))
	t.bpView.ScrollToEnd()
}

// headerText 标题栏：会话状态与聚合统计，调用方持有statsMu
func (t *TUI) headerText(now time.Time) string {
	var b strings.Builder
	b.WriteString("[green]goiperf[white]")
	if t.tuiConfig.SystemInfo != "" {
		fmt.Fprintf(&b, " [gray](%s)[white]", t.tuiConfig.SystemInfo)
	}
	fmt.Fprintf(&b, " | 状态: %s", stateLabel(t.status.State))
	if !t.status.StartTime.IsZero() {
		fmt.Fprintf(&b, " | 用时 %.1fs", t.status.Elapsed(now))
		if t.status.Duration > 0 {
			fmt.Fprintf(&b, " | 进度 %.0f%%", t.status.Progress(now)*100)
		}
	}
	if t.status.Sampling {
		b.WriteString(" | [yellow]采样中[white]")
	}

	if t.stats.Count > 0 {
		fmt.Fprintf(&b, " | 平均 %.2f Mbps 峰值 %.2f Mbps", t.stats.AverageMbps, t.stats.MaxMbps)
		if t.status.UDP {
			fmt.Fprintf(&b, " | 抖动 %.3f ms 丢包 %d/%d (%.2f%%)",
				t.stats.AverageJitterMs, t.stats.LostPackets, t.stats.TotalPackets, t.stats.LossRate)
		} else {
			fmt.Fprintf(&b, " | 重传 %d", t.stats.Retransmits)
		}
	}
	if t.status.Error != "" {
		fmt.Fprintf(&b, " | [red]%s[white]", tview.Escape(t.status.Error))
	}
	return b.String()
}

// footerText 底栏：按键说明与最近一次操作的结果，调用方持有statsMu
func (t *TUI) footerText() string {
	if t.message == "" {
		return keyHelp
	}
	return keyHelp + "  | " + tview.Escape(t.message)
}

// createHeaderRow 创建表头行
func (t *TUI) createHeaderRow() *tview.Flex {
	headerFlex := tview.NewFlex()
	headerFlex.SetDirection(tview.FlexColumn)

	nameHeader := tview.NewTextView()
	nameHeader.SetText(fmt.Sprintf("[yellow]%-12s[white]", "曲线"))
	nameHeader.SetDynamicColors(true)
	headerFlex.AddItem(nameHeader, 0, 2, false)

	for _, key := range summaryKeys {
		headerText := tview.NewTextView()
		headerText.SetText(fmt.Sprintf("[yellow]%8s[white]", key))
		headerText.SetDynamicColors(true)
		headerText.SetTextAlign(tview.AlignCenter)
		headerFlex.AddItem(headerText, 0, 1, false)
	}

	return headerFlex
}

// createDataRow 创建数据行
func (t *TUI) createDataRow(name string) *tview.Flex {
	rowFlex := tview.NewFlex()
	rowFlex.SetDirection(tview.FlexColumn)

	nameText := tview.NewTextView()
	nameText.SetText(fmt.Sprintf("%s%-12s[white]", seriesColor(name), name))
	nameText.SetDynamicColors(true)
	rowFlex.AddItem(nameText, 0, 2, false)

	s := t.series[name]
	for _, key := range summaryKeys {
		value := "N/A"
		if s != nil {
			if val, exists := s.Summary[key]; exists && val != "" {
				value = val
			}
		}

		dataText := tview.NewTextView()
		dataText.SetText(fmt.Sprintf("%8s", value))
		dataText.SetTextAlign(tview.AlignCenter)
		dataText.SetTextColor(tcell.ColorWhite)
		rowFlex.AddItem(dataText, 0, 1, false)
	}

	return rowFlex
}

// updateChart 更新图表显示
func (t *TUI) updateChart() {
	if t.testMode || t.chart == nil {
		return
	}

	t.statsMu.RLock()
	defer t.statsMu.RUnlock()

	// 获取图表视图的实际可绘制尺寸
	_, _, width, height := t.chart.GetInnerRect()
	if width < t.tuiConfig.MinChartWidth {
		width = 80
	}
	if height < t.tuiConfig.MinChartHeight {
		height = t.tuiConfig.ChartHeight
	}

	points, colors := t.chartData()
	t.chart.SetText(t.drawChart(points, colors, width, height, time.Now()))
}

// safeUIUpdate 安全地执行UI更新操作
func (t *TUI) safeUIUpdate(updateFunc func()) {
	defer func() {
		// 应用已经停止时忽略panic
		_ = recover()
	}()
	t.app.QueueUpdateDraw(updateFunc)
}
