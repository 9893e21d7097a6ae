// Package tui 工具函数和辅助类型
package tui

import (
	"fmt"
	"math"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// formatBandwidth 提供自适应的带宽格式化，输入单位为Mbps
func formatBandwidth(mbps float64) string {
	if math.IsNaN(mbps) || math.IsInf(mbps, 0) {
		return "N/A"
	}

	switch {
	case mbps < 1.0:
		return fmt.Sprintf("%.0fK", mbps*1000)
	case mbps < 1000.0:
		return fmt.Sprintf("%.1fM", mbps)
	default:
		return fmt.Sprintf("%.2fG", mbps/1000)
	}
}

// formatOffset 格式化相对会话开始的时间
func formatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.0fs", d.Seconds())
}

// seriesColor 曲线与统计行使用的颜色
func seriesColor(name string) string {
	switch name {
	case seriesBandwidth:
		return "[green]"
	case seriesSamples:
		return "[yellow]"
	default:
		return "[white]"
	}
}

// stateLabel 会话状态的显示文字与颜色
func stateLabel(state core.SessionState) string {
	switch state {
	case core.StateIdle:
		return "[gray]空闲[white]"
	case core.StateRunning:
		return "[green]运行中[white]"
	case core.StateStopping:
		return "[yellow]停止中[white]"
	case core.StateFinished:
		return "[blue]已完成[white]"
	case core.StateFailed:
		return "[red]失败[white]"
	default:
		return state.String()
	}
}

// abs 返回整数的绝对值
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
