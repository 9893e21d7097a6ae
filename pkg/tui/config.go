// Package tui 配置定义
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/metrics"
)

// Config TUI组件的配置结构
type Config struct {
	RefreshInterval    time.Duration // UI刷新间隔
	WindowDuration     time.Duration // 图表显示的时间窗口
	BreakpointInterval time.Duration // 按b开启采样时使用的间隔
	MaxLogLines        int           // 日志面板保留行数，也是启动时的回放行数
	ChartHeight        int           // 图表占用的行数
	MinChartWidth      int           // 最小图表宽度
	MinChartHeight     int           // 最小图表高度
	MaxHistorySize     int           // 每条曲线保留的数据点数
	ValueBufferRatio   float64       // 值缓冲比例
	MaxChartSize       int           // 最大图表尺寸（防止极端值）
	SystemInfo         string        // 显示在标题栏的平台与输出模式
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:    200 * time.Millisecond,
		WindowDuration:     60 * time.Second,
		BreakpointInterval: metrics.DefaultBreakpointInterval,
		MaxLogLines:        1000,
		ChartHeight:        12,
		MinChartWidth:      20,
		MinChartHeight:     5,
		MaxHistorySize:     600,
		ValueBufferRatio:   0.1,
		MaxChartSize:       1000,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return errors.New("UI刷新间隔必须大于0")
	}

	if c.RefreshInterval < 10*time.Millisecond {
		return errors.New("UI刷新间隔不能小于10ms")
	}

	if c.WindowDuration < time.Second {
		return errors.New("图表时间窗口不能小于1秒")
	}

	if c.BreakpointInterval < metrics.MinBreakpointInterval {
		return fmt.Errorf("采样间隔不能小于%v", metrics.MinBreakpointInterval)
	}

	if c.MaxLogLines <= 0 {
		return errors.New("日志行数必须大于0")
	}

	if c.ChartHeight < c.MinChartHeight {
		return errors.New("图表高度不能小于最小图表高度")
	}

	if c.MinChartWidth <= 0 {
		return errors.New("最小图表宽度必须大于0")
	}

	if c.MinChartHeight <= 0 {
		return errors.New("最小图表高度必须大于0")
	}

	if c.MaxHistorySize < 10 {
		return errors.New("历史缓冲区大小不能小于10")
	}

	if c.MaxHistorySize > 10000 {
		return errors.New("历史缓冲区大小不能超过10000")
	}

	if c.ValueBufferRatio < 0 {
		return errors.New("值缓冲比例不能为负数")
	}

	if c.MaxChartSize <= 0 {
		return errors.New("最大图表尺寸必须大于0")
	}

	return nil
}
