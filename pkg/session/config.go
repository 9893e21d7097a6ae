// Package session 配置定义
package session

import (
	"errors"
	"fmt"

	"github.com/Kevin-Rudy/goiperf/pkg/broker"
	"github.com/Kevin-Rudy/goiperf/pkg/logstore"
	"github.com/Kevin-Rudy/goiperf/pkg/metrics"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
)

// Config 会话管理器的配置结构
type Config struct {
	MaxLines     int            // 日志存储容量
	MaxSamples   int            // 断点记录容量
	ClearOnStart bool           // 启动新测试时清空日志
	Runner       *runner.Config // 子进程配置
	Broker       *broker.Config // 分发器配置
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxLines:     logstore.DefaultMaxLines,
		MaxSamples:   metrics.DefaultMaxSamples,
		ClearOnStart: true,
		Runner:       runner.DefaultConfig(),
		Broker:       broker.DefaultConfig(),
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.MaxLines <= 0 {
		return errors.New("日志容量必须大于0")
	}

	if c.MaxSamples <= 0 {
		return errors.New("断点记录容量必须大于0")
	}

	if c.Runner == nil || c.Broker == nil {
		return errors.New("缺少子进程或分发器配置")
	}

	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("子进程配置错误: %w", err)
	}

	if err := c.Broker.Validate(); err != nil {
		return fmt.Errorf("分发器配置错误: %w", err)
	}

	return nil
}

// Option 配置选项函数类型
type Option func(*Config)

// WithMaxLines 设置日志存储容量
func WithMaxLines(n int) Option {
	return func(c *Config) {
		c.MaxLines = n
	}
}

// WithMaxSamples 设置断点记录容量
func WithMaxSamples(n int) Option {
	return func(c *Config) {
		c.MaxSamples = n
	}
}

// WithClearOnStart 设置启动时是否清空日志
func WithClearOnStart(clear bool) Option {
	return func(c *Config) {
		c.ClearOnStart = clear
	}
}

// WithRunnerOptions 调整子进程配置
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(c *Config) {
		if c.Runner == nil {
			c.Runner = runner.DefaultConfig()
		}
		for _, opt := range opts {
			opt(c.Runner)
		}
	}
}

// WithBrokerConfig 设置分发器配置
func WithBrokerConfig(bc *broker.Config) Option {
	return func(c *Config) {
		c.Broker = bc
	}
}
