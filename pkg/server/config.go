// Package server 配置定义
package server

import (
	"errors"
	"os"
	"time"
)

// Config Web服务的配置结构
type Config struct {
	Addr          string        // 监听地址
	MaxConns      int           // 同时连接数上限
	Replay        int           // 流式连接建立时回放的最近行数
	KeepAlive     time.Duration // 流式连接空闲时发送保活注释的间隔
	StaticDir     string        // 前端静态文件目录，空表示不提供
	ShutdownGrace time.Duration // 收到关闭请求后等待的时间，让响应先返回
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:          "localhost:8000",
		MaxConns:      64,
		Replay:        50,
		KeepAlive:     15 * time.Second,
		ShutdownGrace: time.Second,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("监听地址不能为空")
	}

	if c.MaxConns <= 0 {
		return errors.New("连接数上限必须大于0")
	}

	if c.Replay < 0 {
		return errors.New("回放行数不能为负数")
	}

	if c.KeepAlive <= 0 {
		return errors.New("保活间隔必须大于0")
	}

	if c.ShutdownGrace < 0 {
		return errors.New("关闭等待时间不能为负数")
	}

	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil || !info.IsDir() {
			return errors.New("静态文件目录不存在: " + c.StaticDir)
		}
	}

	return nil
}
