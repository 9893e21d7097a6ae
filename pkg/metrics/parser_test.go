package metrics

import (
	"testing"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBandwidthScales(t *testing.T) {
	cases := []struct {
		line string
		mbps float64
	}{
		{"38.6 Mbits/sec", 38.6},
		{"500 Kbits/sec", 0.5},
		{"2 Gbits/sec", 2000},
		{"1500000 bits/sec", 1.5},
		{"1.5 Tbits/sec", 1.5e6},
		{"[  5]   0.00-1.00   sec   112 MBytes   941 Mbits/sec    0    396 KBytes", 941},
	}

	p := Parser{}
	for _, c := range cases {
		m, ok := p.Parse(c.line)
		require.True(t, ok, c.line)
		assert.InDelta(t, c.mbps, m.BandwidthMbps, 1e-9, c.line)
	}
}

func TestParseSkipsUnrecognizedLines(t *testing.T) {
	p := Parser{}
	for _, line := range []string{
		"",
		"Connecting to host 127.0.0.1, port 5201",
		"[ ID] Interval           Transfer     Bitrate         Retr  Cwnd",
		"iperf3: error - unable to connect to server: Connection refused",
		"12 MBytes",
	} {
		_, ok := p.Parse(line)
		assert.False(t, ok, line)
	}
}

func TestParseExcludesAggregateRows(t *testing.T) {
	p := Parser{}
	for _, line := range []string{
		"[SUM]   0.00-1.00   sec   224 MBytes  1.88 Gbits/sec    0",
		"[  5]   0.00-10.00  sec  1.09 GBytes   938 Mbits/sec    0             sender",
		"[  5]   0.00-10.04  sec  1.09 GBytes   933 Mbits/sec                  receiver",
	} {
		_, ok := p.Parse(line)
		assert.False(t, ok, line)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	p := Parser{UDP: true}
	line := "[  5]   1.00-2.00   sec   128 KBytes  1.05 Mbits/sec  0.034 ms  0/89 (0%)"
	a, okA := p.Parse(line)
	b, okB := p.Parse(line)
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
}

func TestParseUDPJitterLoss(t *testing.T) {
	line := "[  5]   1.00-2.00   sec   128 KBytes  1.05 Mbits/sec  0.034 ms  3/89 (3.4%)"

	m, ok := Parser{UDP: true}.Parse(line)
	require.True(t, ok)
	assert.InDelta(t, 1.05, m.BandwidthMbps, 1e-9)
	require.NotNil(t, m.JitterMs)
	assert.InDelta(t, 0.034, *m.JitterMs, 1e-9)
	require.NotNil(t, m.LostPackets)
	require.NotNil(t, m.TotalPackets)
	assert.Equal(t, 3, *m.LostPackets)
	assert.Equal(t, 89, *m.TotalPackets)
	require.NotNil(t, m.IntervalStart)
	assert.Equal(t, 1.0, *m.IntervalStart)
	assert.Equal(t, 2.0, *m.IntervalEnd)

	// TCP模式不解析抖动
	m, ok = Parser{}.Parse(line)
	require.True(t, ok)
	assert.Nil(t, m.JitterMs)
	assert.Nil(t, m.LostPackets)
}

func TestParseTCPRetransmits(t *testing.T) {
	m, ok := Parser{}.Parse("[  5]   2.00-3.00   sec   110 MBytes   923 Mbits/sec   12    1.02 MBytes")
	require.True(t, ok)
	require.NotNil(t, m.Retransmits)
	assert.Equal(t, 12, *m.Retransmits)

	// 反向模式下客户端是接收端，没有重传列
	m, ok = Parser{}.Parse("[  5]   2.00-3.00   sec   110 MBytes   923 Mbits/sec")
	require.True(t, ok)
	assert.Nil(t, m.Retransmits)
}

func TestParseSummary(t *testing.T) {
	p := Parser{}

	s, ok := p.ParseSummary("[  5]   0.00-10.00  sec  1.09 GBytes   938 Mbits/sec    4             sender")
	require.True(t, ok)
	assert.Equal(t, core.RoleSender, s.Role)
	assert.False(t, s.Aggregate)
	assert.InDelta(t, 938, s.Metric.BandwidthMbps, 1e-9)
	require.NotNil(t, s.Metric.Retransmits)
	assert.Equal(t, 4, *s.Metric.Retransmits)

	s, ok = p.ParseSummary("[SUM]   0.00-10.04  sec  2.18 GBytes  1.87 Gbits/sec                  receiver")
	require.True(t, ok)
	assert.Equal(t, core.RoleReceiver, s.Role)
	assert.True(t, s.Aggregate)
	assert.InDelta(t, 1870, s.Metric.BandwidthMbps, 1e-9)

	_, ok = p.ParseSummary("[  5]   0.00-1.00   sec   112 MBytes   941 Mbits/sec")
	assert.False(t, ok)
	_, ok = p.ParseSummary("Test Complete. Summary Results: sender")
	assert.False(t, ok)
}

func TestConvertToMbpsUnknownScale(t *testing.T) {
	assert.Equal(t, 7.0, ConvertToMbps(7, "X"))
	assert.Equal(t, 0.5, ConvertToMbps(500, "K"))
}
