package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/Kevin-Rudy/goiperf/pkg/logstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writer 模拟会话写入方：先追加行，再发布行事件
type writer struct {
	store *logstore.Store
	d     *Distributor
}

func (w *writer) line(text string) core.LogLine {
	line := w.store.Append(text)
	w.d.Publish(core.LineEvent(line))
	return line
}

func (w *writer) derived(kind core.EventKind) {
	w.d.Publish(core.Event{Kind: kind, Seq: w.store.LastSeq(), Time: time.Now()})
}

func newTestDistributor(t *testing.T, config *Config) (*writer, *Distributor) {
	t.Helper()
	store := logstore.New(100)
	d, err := New(store, config)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return &writer{store: store, d: d}, d
}

func nextBatch(t *testing.T, sub *Subscription) []core.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := sub.Next(ctx)
	require.NoError(t, err)
	return events
}

func kinds(events []core.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		if ev.Kind == core.EventLine {
			out[i] = ev.Line.Text
		} else {
			out[i] = fmt.Sprintf("%s@%d", ev.Kind, ev.Seq)
		}
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{QueueSize: 0, BatchSize: 1}).Validate())
	assert.Error(t, (&Config{QueueSize: 1, BatchSize: 0}).Validate())

	_, err := New(logstore.New(1), &Config{})
	assert.Error(t, err)
}

func TestAttachReplaysRecentLines(t *testing.T) {
	w, d := newTestDistributor(t, nil)
	for i := 1; i <= 10; i++ {
		w.line(fmt.Sprintf("l%d", i))
	}

	sub := d.Attach("web", 3)
	assert.Equal(t, 1, d.Count())
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "web", sub.Name())

	assert.Equal(t, []string{"l8", "l9", "l10"}, kinds(nextBatch(t, sub)))
}

func TestDerivedEventsFollowTheirLine(t *testing.T) {
	w, d := newTestDistributor(t, nil)
	w.derived(core.EventSessionStarted)
	sub := d.Attach("ui", 0)

	w.line("l1")
	w.derived(core.EventMetric)
	w.line("l2")
	w.line("l3")
	w.derived(core.EventMetric)
	w.derived(core.EventBreakpoint)

	assert.Equal(t,
		[]string{"l1", "metric@1", "l2", "l3", "metric@3", "breakpoint@3"},
		kinds(nextBatch(t, sub)))
}

func TestBatchTruncationKeepsOrder(t *testing.T) {
	w, d := newTestDistributor(t, &Config{QueueSize: 16, BatchSize: 3})
	sub := d.Attach("ui", 0)

	for i := 1; i <= 7; i++ {
		w.line(fmt.Sprintf("l%d", i))
		if i == 5 {
			w.derived(core.EventMetric)
		}
	}

	assert.Equal(t, []string{"l1", "l2", "l3"}, kinds(nextBatch(t, sub)))
	assert.Equal(t, []string{"l4", "l5", "metric@5", "l6"}, kinds(nextBatch(t, sub)))
	assert.Equal(t, []string{"l7"}, kinds(nextBatch(t, sub)))
}

func TestSlowConsumerDropsOldestDerived(t *testing.T) {
	w, d := newTestDistributor(t, &Config{QueueSize: 2, BatchSize: 10})
	sub := d.Attach("slow", 0)
	other := d.Attach("fast", 0)

	for i := 0; i < 5; i++ {
		w.line(fmt.Sprintf("l%d", i+1))
		w.derived(core.EventMetric)
		if i == 0 {
			// 快消费者及时读取
			assert.Len(t, nextBatch(t, other), 2)
		}
	}

	events := nextBatch(t, sub)
	// 行不会被丢弃，只丢最旧的派生事件
	assert.Equal(t, []string{"l1", "l2", "l3", "l4", "metric@4", "l5", "metric@5"}, kinds(events))
	assert.Equal(t, uint64(3), sub.Dropped())
}

func TestClearedGapIsSkipped(t *testing.T) {
	w, d := newTestDistributor(t, nil)
	for i := 1; i <= 5; i++ {
		w.line(fmt.Sprintf("l%d", i))
	}
	sub := d.Attach("ui", 0)

	w.line("l6")
	w.line("l7")
	w.store.Clear()
	w.derived(core.EventCleared)
	w.line("l8")

	assert.Equal(t, []string{"cleared@7", "l8"}, kinds(nextBatch(t, sub)))
}

func TestNextHonoursContext(t *testing.T) {
	_, d := newTestDistributor(t, nil)
	sub := d.Attach("ui", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetachUnblocksNext(t *testing.T) {
	_, d := newTestDistributor(t, nil)
	sub := d.Attach("ui", 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, core.ErrDetached)
	case <-time.After(2 * time.Second):
		t.Fatal("Next没有在解除挂载后返回")
	}
	assert.Equal(t, 0, d.Count())
}

func TestAttachAfterClose(t *testing.T) {
	_, d := newTestDistributor(t, nil)
	d.Close()

	sub := d.Attach("late", 0)
	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, core.ErrDetached)
	assert.Equal(t, 0, d.Count())
}

func TestConcurrentConsumersSeeEveryLineOnce(t *testing.T) {
	store := logstore.New(5000)
	d, err := New(store, &Config{QueueSize: 4096, BatchSize: 64})
	require.NoError(t, err)
	defer d.Close()
	w := &writer{store: store, d: d}

	const total = 1000
	subs := []*Subscription{d.Attach("a", 0), d.Attach("b", 0), d.Attach("c", 0)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make([][]uint64, len(subs))
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			for len(results[i]) < total {
				events, err := sub.Next(ctx)
				if err != nil {
					t.Errorf("consumer %d: %v", i, err)
					return
				}
				for _, ev := range events {
					if ev.Kind == core.EventLine {
						results[i] = append(results[i], ev.Seq)
					}
				}
			}
		}(i, sub)
	}

	for i := 0; i < total; i++ {
		w.line(fmt.Sprintf("line %d", i))
		if i%10 == 0 {
			w.derived(core.EventMetric)
		}
	}
	wg.Wait()

	for i, seqs := range results {
		require.Len(t, seqs, total, "consumer %d", i)
		for j, seq := range seqs {
			assert.Equal(t, uint64(j+1), seq)
		}
	}
}
