// Package tui 图表渲染模块
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// brailleCell 定义盲文字符的cell结构
type brailleCell struct {
	char  int
	color string
}

// 盲文点阵的映射关系 (2x4 grid)
var brailleDotMap = [4][2]int{
	{0b00000001, 0b00001000}, // (y:0, x:0), (y:0, x:1)
	{0b00000010, 0b00010000}, // (y:1, x:0), (y:1, x:1)
	{0b00000100, 0b00100000}, // (y:2, x:0), (y:2, x:1)
	{0b01000000, 0b10000000}, // (y:3, x:0), (y:3, x:1)
}

// validateChartSize 验证图表尺寸是否合理
func (t *TUI) validateChartSize(width, height int) string {
	if height < t.tuiConfig.MinChartHeight || width < t.tuiConfig.MinChartWidth {
		return "终端尺寸过小"
	}
	if width > t.tuiConfig.MaxChartSize || height > t.tuiConfig.MaxChartSize {
		return "终端尺寸过大"
	}
	return ""
}

// calculateValueRange 计算窗口内数据的值范围
func (t *TUI) calculateValueRange(points map[string][]dataPoint, windowStart, windowEnd time.Time) (minVal, maxVal, valueRange float64, errMsg string) {
	first := true
	for _, history := range points {
		for _, point := range history {
			if !point.Timestamp.After(windowStart) || !point.Timestamp.Before(windowEnd) {
				continue
			}
			if math.IsNaN(point.Value) || math.IsInf(point.Value, 0) {
				continue
			}
			if first {
				minVal, maxVal = point.Value, point.Value
				first = false
				continue
			}
			minVal = math.Min(minVal, point.Value)
			maxVal = math.Max(maxVal, point.Value)
		}
	}

	if first {
		return 0, 0, 0, "当前窗口内没有数据"
	}

	// 如果所有值都一样，特殊处理
	if maxVal == minVal {
		maxVal++
		minVal--
	}

	// 采用缓冲算法
	maxVal = maxVal + maxVal*t.tuiConfig.ValueBufferRatio
	minVal = minVal - minVal*t.tuiConfig.ValueBufferRatio
	if minVal < 0 {
		minVal = 0
	}

	valueRange = maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}

	return minVal, maxVal, valueRange, ""
}

// chartData 收集要绘制的曲线，selectedRow为-1时绘制全部，调用方持有statsMu
func (t *TUI) chartData() (map[string][]dataPoint, map[string]string) {
	points := make(map[string][]dataPoint)
	colors := make(map[string]string)
	for i, name := range t.identifiers {
		if t.selectedRow != -1 && t.selectedRow != i {
			continue
		}
		if s, exists := t.series[name]; exists && len(s.History) > 0 {
			points[name] = s.History
			colors[name] = seriesColor(name)
		}
	}
	return points, colors
}

// drawChart 基于时间戳绘制图表
func (t *TUI) drawChart(points map[string][]dataPoint, colors map[string]string, width, height int, now time.Time) string {
	if len(points) == 0 {
		return "没有数据"
	}

	// 检查图表尺寸是否合理
	if sizeErr := t.validateChartSize(width, height); sizeErr != "" {
		return sizeErr
	}

	windowStart, windowEnd := t.getTimeWindow(now)

	minVal, maxVal, valueRange, errMsg := t.calculateValueRange(points, windowStart, windowEnd)
	if errMsg != "" {
		return errMsg
	}

	// 动态计算Y轴标签宽度
	yAxisLabelWidth := max(len(formatBandwidth(maxVal)), len(formatBandwidth(minVal))) + 2

	chartBodyHeight := height - 2 // 为X轴和时间戳留出2行空间
	chartWidth := width - yAxisLabelWidth
	if chartBodyHeight <= 0 || chartWidth <= 0 {
		return "可绘制区域过小"
	}

	canvas := make([][]brailleCell, chartWidth)
	for i := range canvas {
		canvas[i] = make([]brailleCell, chartBodyHeight)
	}

	// 按固定顺序绘制，后绘制的曲线覆盖颜色
	for _, name := range t.identifiers {
		history := points[name]
		if len(history) == 0 {
			continue
		}
		color := colors[name]
		if color == "" {
			color = "[white]"
		}

		lastX, lastY := -1, -1
		for _, point := range history {
			if !point.Timestamp.After(windowStart) || !point.Timestamp.Before(windowEnd) {
				continue
			}

			currX := timestampToX(point.Timestamp, windowStart, windowEnd, chartWidth*2) // 使用高分辨率
			if currX < 0 || currX >= chartWidth*2 {
				continue
			}

			normalized := (point.Value - minVal) / valueRange
			currY := 0
			if !math.IsNaN(normalized) && !math.IsInf(normalized, 0) {
				currY = int((1.0 - normalized) * float64(chartBodyHeight*4-1))
			}
			currY = min(max(currY, 0), chartBodyHeight*4-1)

			if lastX != -1 {
				drawBrailleLine(canvas, lastX, lastY, currX, currY, chartBodyHeight*4, chartWidth*2, color)
			} else {
				plotBraille(canvas, currX, currY, color)
			}
			lastX, lastY = currX, currY
		}
	}

	var lines []string

	// 预先计算Y轴标签及其对应的行号
	yAxisLabelCount := min(5, chartBodyHeight)
	yAxisLabels := make(map[int]string)
	if yAxisLabelCount > 1 {
		for i := 0; i < yAxisLabelCount; i++ {
			normalized := float64(i) / float64(yAxisLabelCount-1)
			value := maxVal - normalized*valueRange
			yAxisLabels[int(normalized*float64(chartBodyHeight-1))] = formatBandwidth(value)
		}
	}

	for i := 0; i < chartBodyHeight; i++ {
		var b strings.Builder
		fmt.Fprintf(&b, "[gray]%*s[white] [gray]│[white]", yAxisLabelWidth-2, yAxisLabels[i])
		for j := 0; j < chartWidth; j++ {
			cell := canvas[j][i]
			if cell.char == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(cell.color)
			b.WriteRune(rune(0x2800 + cell.char))
			b.WriteString("[white]")
		}
		lines = append(lines, b.String())
	}

	// X轴
	xAxisLine := fmt.Sprintf("%-*s└%s", yAxisLabelWidth-1, "", strings.Repeat("─", chartWidth))
	lines = append(lines, "[gray]"+xAxisLine+"[white]")

	// X轴刻度显示相对会话开始的秒数
	startLabel := formatOffset(windowStart.Sub(t.startTime))
	endLabel := formatOffset(windowEnd.Sub(t.startTime))
	spaceCount := max(chartWidth-len(startLabel)-len(endLabel), 1)
	timeLine := fmt.Sprintf("%-*s%s%*s%s", yAxisLabelWidth, "", startLabel, spaceCount, "", endLabel)
	lines = append(lines, "[gray]"+timeLine+"[white]")

	// 保证X轴总是可见
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

// plotBraille 在高分辨率坐标上点一个点
func plotBraille(canvas [][]brailleCell, x, y int, color string) {
	canvasX, canvasY := x/2, y/4
	if canvasX < 0 || canvasX >= len(canvas) || canvasY < 0 || canvasY >= len(canvas[0]) {
		return
	}
	canvas[canvasX][canvasY].char |= brailleDotMap[y%4][x%2]
	canvas[canvasX][canvasY].color = color
}

// drawBrailleLine 使用布雷森汉姆算法在盲文画布上绘制线段
func drawBrailleLine(canvas [][]brailleCell, x1, y1, x2, y2, maxHeight, maxWidth int, color string) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	x, y := x1, y1
	for {
		if y >= 0 && y < maxHeight && x >= 0 && x < maxWidth {
			plotBraille(canvas, x, y, color)
		}

		if x == x2 && y == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}
