// Package broker 配置定义
package broker

import "errors"

// Config 分发器的配置结构
type Config struct {
	QueueSize int // 每个订阅者缓存的派生事件上限，超出时丢弃最旧的
	BatchSize int // 每次Next最多返回的日志行数
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		QueueSize: 1024,
		BatchSize: 500,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.New("事件队列长度必须大于0")
	}

	if c.BatchSize <= 0 {
		return errors.New("批量大小必须大于0")
	}

	return nil
}
