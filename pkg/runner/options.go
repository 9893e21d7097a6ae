// Package runner 选项模式支持
package runner

import "time"

// Option 配置选项函数类型
type Option func(*Config)

// WithExecutable 设置测速工具可执行文件
func WithExecutable(name string) Option {
	return func(c *Config) {
		c.Executable = name
	}
}

// WithBundleDir 设置优先查找可执行文件的目录
func WithBundleDir(dir string) Option {
	return func(c *Config) {
		c.BundleDir = dir
	}
}

// WithWorkDir 设置子进程工作目录
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithPTY 设置是否优先使用伪终端
func WithPTY(enabled bool) Option {
	return func(c *Config) {
		c.UsePTY = enabled
	}
}

// WithStopGrace 设置停止等待时间
func WithStopGrace(grace time.Duration) Option {
	return func(c *Config) {
		c.StopGrace = grace
	}
}

// WithForceFlush 设置是否追加--forceflush
func WithForceFlush(enabled bool) Option {
	return func(c *Config) {
		c.ForceFlush = enabled
	}
}

// NewSupervisorWithOptions 使用选项模式创建Supervisor
func NewSupervisorWithOptions(opts ...Option) (*Supervisor, error) {
	config := DefaultConfig()

	// 应用所有选项
	for _, opt := range opts {
		opt(config)
	}

	return NewSupervisor(config)
}
