package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerDisabledRecordsNothing(t *testing.T) {
	s := NewSampler(0)
	_, ok := s.Observe(100, 10, time.Now())
	assert.False(t, ok)
	assert.Empty(t, s.Samples())
	assert.False(t, s.Active())
}

func TestSamplerOneSamplePerBoundary(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, 5*time.Second)
	assert.True(t, s.Active())
	assert.Equal(t, 5*time.Second, s.Interval())

	// 工具每秒报告一次
	now := time.Now()
	for sec := 1; sec <= 16; sec++ {
		s.Observe(float64(sec), float64(sec*10), now)
	}

	samples := s.Samples()
	require.Len(t, samples, 3)
	for i, sample := range samples {
		boundary := float64((i + 1) * 5)
		assert.Equal(t, i+1, sample.Seq)
		assert.GreaterOrEqual(t, sample.ElapsedSeconds, boundary)
	}
	assert.Equal(t, 50.0, samples[0].BandwidthMbps)
}

func TestSamplerSkipsCrossedBoundariesWithoutBurst(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, 5*time.Second)

	// 工具报告间隔(12s)大于采样间隔，一次跨过两个边界
	sample, ok := s.Observe(12, 40, time.Now())
	require.True(t, ok)
	assert.Equal(t, 12.0, sample.ElapsedSeconds)

	// 下一个边界是15s，13s不应再次记录
	_, ok = s.Observe(13, 40, time.Now())
	assert.False(t, ok)

	_, ok = s.Observe(15, 40, time.Now())
	assert.True(t, ok)
	assert.Len(t, s.Samples(), 2)
}

func TestSamplerDisableBeforeBoundary(t *testing.T) {
	s := NewSampler(0)
	s.Enable(2, 5*time.Second)
	s.Observe(3, 10, time.Now())
	s.Observe(6.9, 10, time.Now())

	avg, n := s.Disable()
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, avg)
	assert.Empty(t, s.Samples())

	_, ok := s.Observe(100, 10, time.Now())
	assert.False(t, ok)
}

func TestSamplerDisableAverage(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, time.Second)
	s.Observe(1, 10, time.Now())
	s.Observe(2, 30, time.Now())

	avg, n := s.Disable()
	assert.Equal(t, 2, n)
	assert.Equal(t, 20.0, avg)
	assert.False(t, s.Active())
}

func TestSamplerDefaultIntervalAndBound(t *testing.T) {
	s := NewSampler(2)
	s.Enable(0, 0)
	assert.Equal(t, DefaultBreakpointInterval, s.Interval())

	for i := 1; i <= 4; i++ {
		s.Observe(float64(i*5), 1, time.Now())
	}
	samples := s.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, 3, samples[0].Seq)

	s.Reset()
	assert.Empty(t, s.Samples())
	assert.False(t, s.Active())
}

func TestSamplerClearKeepsSchedule(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, 5*time.Second)
	s.Observe(5, 10, time.Now())
	s.Clear()

	assert.Empty(t, s.Samples())
	assert.True(t, s.Active())

	sample, ok := s.Observe(10, 20, time.Now())
	require.True(t, ok)
	assert.Equal(t, 1, sample.Seq)
}

func TestSamplerLongGapAdvancesInOneStep(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, time.Second)

	_, ok := s.Observe(1000.5, 10, time.Now())
	require.True(t, ok)

	_, ok = s.Observe(1000.9, 10, time.Now())
	assert.False(t, ok)
	_, ok = s.Observe(1001, 10, time.Now())
	assert.True(t, ok)
}

func TestSamplerTinyIntervalDoesNotStall(t *testing.T) {
	s := NewSampler(0)
	s.Enable(0, time.Nanosecond)

	done := make(chan bool)
	go func() {
		_, ok := s.Observe(3600, 100, time.Now())
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Observe did not return")
	}

	// 同一时刻不会再次记录
	_, ok := s.Observe(3600, 100, time.Now())
	assert.False(t, ok)
}
