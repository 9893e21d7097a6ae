package session

import (
	"testing"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestSummaryReportEmptyWithoutMeasurements(t *testing.T) {
	assert.Nil(t, summaryReport(core.StatsSnapshot{}, nil, false))
}

func TestSummaryReportUDP(t *testing.T) {
	stats := core.StatsSnapshot{
		Count:           4,
		AverageMbps:     9.5,
		MaxMbps:         10.25,
		AverageJitterMs: 0.0346,
		JitterSamples:   4,
		LostPackets:     3,
		TotalPackets:    300,
		LossRate:        0.01,
	}
	lines := summaryReport(stats, nil, true)
	assert.Equal(t, []string{
		"========= 测试汇总 =========",
		"平均带宽: 9.50 Mbps",
		"峰值带宽: 10.25 Mbps",
		"平均抖动: 0.035 ms",
		"丢包情况: 3/300 (1.00%)",
		"===========================",
	}, lines)
}

func TestPickSummaryPrefersAggregate(t *testing.T) {
	summaries := []core.Summary{
		{Role: core.RoleSender, Metric: core.Metric{BandwidthMbps: 10}},
		{Role: core.RoleSender, Aggregate: true, Metric: core.Metric{BandwidthMbps: 40}},
		{Role: core.RoleSender, Metric: core.Metric{BandwidthMbps: 11}},
		{Role: core.RoleReceiver, Metric: core.Metric{BandwidthMbps: 9}},
	}

	s, ok := pickSummary(summaries, core.RoleSender)
	assert.True(t, ok)
	assert.Equal(t, 40.0, s.Metric.BandwidthMbps)

	s, ok = pickSummary(summaries, core.RoleReceiver)
	assert.True(t, ok)
	assert.Equal(t, 9.0, s.Metric.BandwidthMbps)

	_, ok = pickSummary(nil, core.RoleReceiver)
	assert.False(t, ok)
}
