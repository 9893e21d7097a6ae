// Package publish 把事件流转发到NATS，供外部系统订阅
// 每个事件以JSON编码，主题为 <subject>.<kind>
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Config NATS转发的配置结构
type Config struct {
	URL     string // NATS服务器地址
	Subject string // 主题前缀
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		URL:     nats.DefaultURL,
		Subject: "goiperf.events",
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("NATS地址不能为空")
	}
	if strings.TrimSpace(c.Subject) == "" || strings.ContainsAny(c.Subject, " *>") {
		return errors.New("NATS主题不能为空且不能包含通配符")
	}
	return nil
}

// Conn 发布所需的连接接口，*nats.Conn 实现了它
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher 事件转发器
type Publisher struct {
	conn    Conn
	subject string
}

// Connect 连接NATS服务器并创建转发器
func Connect(config *Config) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	nc, err := nats.Connect(config.URL, nats.Name("goiperf"))
	if err != nil {
		return nil, err
	}
	log.Info("已连接NATS服务器", "url", config.URL, "subject", config.Subject)
	return NewPublisher(nc, config.Subject), nil
}

// NewPublisher 基于已有连接创建转发器
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish 编码并发布一个事件
func (p *Publisher) Publish(ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject+"."+string(ev.Kind), data)
}

// Run 从订阅中读取事件并逐个发布，直到ctx结束或订阅关闭
// 单个事件发布失败只记录日志
func (p *Publisher) Run(ctx context.Context, sub core.Subscription) error {
	for {
		events, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrDetached) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, ev := range events {
			if err := p.Publish(ev); err != nil {
				log.Warn("发布事件失败", "kind", ev.Kind, "seq", ev.Seq, "err", err)
			}
		}
	}
}

// Close 排空并关闭连接
func (p *Publisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			log.Warn("关闭NATS连接失败", "err", err)
			return
		}
		log.Info("NATS连接已关闭")
	}
}
