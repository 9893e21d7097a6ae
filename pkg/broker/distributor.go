// Package broker 把写入方产生的事件分发给任意数量的消费者
// 日志行不复制到每个消费者：订阅者持有游标，从共享日志存储读取；
// 派生事件（测量值、断点、会话状态）进入每个订阅者的有界队列。
// 发布永不阻塞，慢消费者只影响自己。
package broker

import (
	"sync"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goiperf_broker_subscribers",
		Help: "Currently attached consumers",
	})
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goiperf_broker_dropped_events_total",
		Help: "Derived events dropped because a consumer queue was full",
	})
)

// LineReader 订阅者读取日志行所需的存储接口
type LineReader interface {
	// ReadSince 返回序列号 > after 的行（最多limit行）以及同一时刻的最后序列号
	ReadSince(after uint64, limit int) ([]core.LogLine, uint64)
	// ReplayCursor 返回能读到最近n行的游标
	ReplayCursor(n int) uint64
}

// Distributor 事件分发器
type Distributor struct {
	store  LineReader
	config *Config

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// New 创建分发器
func New(store LineReader, config *Config) (*Distributor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		store:  store,
		config: config,
		subs:   make(map[string]*Subscription),
	}, nil
}

// Attach 挂载一个消费者，先回放最近replay行，之后接收实时事件
// 分发器已关闭时返回的订阅处于关闭状态
func (d *Distributor) Attach(name string, replay int) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		name:   name,
		d:      d,
		cursor: d.store.ReplayCursor(replay),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		sub.closeOnce.Do(func() { close(sub.done) })
		return sub
	}
	d.subs[sub.id] = sub
	d.mu.Unlock()

	subscribersGauge.Inc()
	log.Debug("消费者已挂载", "name", name, "id", sub.id, "replay", replay)
	// 回放的行立即可读
	sub.notify()
	return sub
}

// Detach 解除挂载，可与Publish并发调用，可重复调用
func (d *Distributor) Detach(sub *Subscription) {
	if sub == nil {
		return
	}
	d.mu.Lock()
	_, ok := d.subs[sub.id]
	delete(d.subs, sub.id)
	d.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.done) })
	if ok {
		subscribersGauge.Dec()
		log.Debug("消费者已解除挂载", "name", sub.name, "id", sub.id, "dropped", sub.Dropped())
	}
}

// Publish 投递事件，永不阻塞
// 日志行事件只唤醒订阅者，行内容由订阅者从存储读取
func (d *Distributor) Publish(ev core.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sub := range d.subs {
		if ev.Kind != core.EventLine {
			sub.enqueue(ev, d.config.QueueSize)
		}
		sub.notify()
	}
}

// Count 当前挂载的消费者数量
func (d *Distributor) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close 关闭所有订阅，之后挂载的订阅立即处于关闭状态
func (d *Distributor) Close() {
	d.mu.Lock()
	subs := make([]*Subscription, 0, len(d.subs))
	for _, sub := range d.subs {
		subs = append(subs, sub)
	}
	d.closed = true
	d.mu.Unlock()

	for _, sub := range subs {
		d.Detach(sub)
	}
}
