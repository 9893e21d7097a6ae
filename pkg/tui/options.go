// Package tui 选项模式支持
package tui

import (
	"time"
)

// Option TUI配置选项函数类型
type Option func(*Config)

// WithRefreshInterval 设置UI刷新间隔
func WithRefreshInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.RefreshInterval = interval
	}
}

// WithWindowDuration 设置图表时间窗口
func WithWindowDuration(d time.Duration) Option {
	return func(c *Config) {
		c.WindowDuration = d
	}
}

// WithBreakpointInterval 设置断点采样间隔
func WithBreakpointInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.BreakpointInterval = interval
	}
}

// WithMaxLogLines 设置日志面板保留行数
func WithMaxLogLines(n int) Option {
	return func(c *Config) {
		c.MaxLogLines = n
	}
}

// WithChartHeight 设置图表高度
func WithChartHeight(height int) Option {
	return func(c *Config) {
		c.ChartHeight = height
	}
}

// WithHistorySize 设置历史缓冲区大小
func WithHistorySize(size int) Option {
	return func(c *Config) {
		c.MaxHistorySize = size
	}
}

// WithSystemInfo 设置标题栏显示的系统信息
func WithSystemInfo(info string) Option {
	return func(c *Config) {
		c.SystemInfo = info
	}
}

// NewConfigWithOptions 使用选项模式创建TUI配置
func NewConfigWithOptions(opts ...Option) *Config {
	config := DefaultConfig()

	// 应用所有选项
	for _, opt := range opts {
		opt(config)
	}

	return config
}
