// Package metrics 负责从测速工具的文本输出中提取测量值，并维护运行统计与断点采样
package metrics

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// 行模式，按优先级：汇总标记排除 > 带宽 > 抖动/丢包(UDP) > 重传(TCP) > 报告区间
var (
	// 带宽: "38.6 Mbits/sec"，单位前缀可选
	bandwidthPattern = regexp.MustCompile(`(?:^|\s)(\d+(?:\.\d+)?)\s*([KMGT]?)bits/sec`)
	// UDP抖动与丢包: "0.034 ms  0/89 (0%)"
	jitterLossPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s+ms\s+(\d+)/(\d+)`)
	// TCP重传: 带宽之后的整数列，后面是拥塞窗口列、sender标记或行尾
	// "941 Mbits/sec    3    396 KBytes" / "938 Mbits/sec    4    sender"
	retransmitPattern = regexp.MustCompile(`bits/sec\s+(\d+)(?:\s+\d+(?:\.\d+)?\s+[KMGT]?Bytes|\s+sender|\s*$)`)
	// 报告区间: "0.00-1.00   sec"
	intervalPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)-\s*(\d+(?:\.\d+)?)\s+sec`)
)

// 汇总行标记
const (
	markerSum      = "[SUM]"
	markerSender   = "sender"
	markerReceiver = "receiver"
)

// scaleToMbps 带宽单位前缀到Mbps的换算系数
var scaleToMbps = map[string]float64{
	"":  1e-6,
	"K": 1e-3,
	"M": 1,
	"G": 1e3,
	"T": 1e6,
}

// ConvertToMbps 将带单位前缀的带宽数值换算为Mbps
// 未知前缀按Mbps处理
func ConvertToMbps(value float64, scale string) float64 {
	factor, ok := scaleToMbps[scale]
	if !ok {
		return value
	}
	return value * factor
}

// IsAggregate 判断该行是否为汇总行（多流SUM行或sender/receiver结果行）
// 汇总行不计入逐区间统计，避免重复计数
func IsAggregate(line string) bool {
	return strings.Contains(line, markerSum) ||
		strings.Contains(line, markerSender) ||
		strings.Contains(line, markerReceiver)
}

// Parser 行解析器，值类型且无状态
type Parser struct {
	UDP bool // UDP模式下额外解析抖动与丢包
}

// Parse 从一行输出中提取逐区间测量值
// 无法识别或属于汇总行时返回false，该行仅保留在原始日志中
func (p Parser) Parse(line string) (core.Metric, bool) {
	if IsAggregate(line) {
		return core.Metric{}, false
	}
	return p.parseFields(line)
}

// ParseSummary 解析测试结束时的sender/receiver汇总行
func (p Parser) ParseSummary(line string) (core.Summary, bool) {
	var role core.SummaryRole
	switch {
	case strings.Contains(line, markerSender):
		role = core.RoleSender
	case strings.Contains(line, markerReceiver):
		role = core.RoleReceiver
	default:
		return core.Summary{}, false
	}

	m, ok := p.parseFields(line)
	if !ok {
		return core.Summary{}, false
	}
	return core.Summary{
		Role:      role,
		Aggregate: strings.Contains(line, markerSum),
		Metric:    m,
	}, true
}

// parseFields 按语法顺序提取各字段
func (p Parser) parseFields(line string) (core.Metric, bool) {
	match := bandwidthPattern.FindStringSubmatch(line)
	if match == nil {
		return core.Metric{}, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return core.Metric{}, false
	}

	m := core.Metric{
		BandwidthMbps: ConvertToMbps(value, match[2]),
	}

	if p.UDP {
		parseJitterLoss(line, &m)
	} else {
		parseRetransmits(line, &m)
	}
	parseInterval(line, &m)

	return m, true
}

// parseJitterLoss 解析UDP抖动与丢包字段
func parseJitterLoss(line string, m *core.Metric) {
	match := jitterLossPattern.FindStringSubmatch(line)
	if match == nil {
		return
	}
	jitter, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return
	}
	lost, err := strconv.Atoi(match[2])
	if err != nil {
		return
	}
	total, err := strconv.Atoi(match[3])
	if err != nil {
		return
	}
	m.JitterMs = &jitter
	m.LostPackets = &lost
	m.TotalPackets = &total
}

// parseRetransmits 解析TCP发送端的重传计数
func parseRetransmits(line string, m *core.Metric) {
	match := retransmitPattern.FindStringSubmatch(line)
	if match == nil {
		return
	}
	if retr, err := strconv.Atoi(match[1]); err == nil {
		m.Retransmits = &retr
	}
}

// parseInterval 解析报告区间
func parseInterval(line string, m *core.Metric) {
	match := intervalPattern.FindStringSubmatch(line)
	if match == nil {
		return
	}
	start, err1 := strconv.ParseFloat(match[1], 64)
	end, err2 := strconv.ParseFloat(match[2], 64)
	if err1 != nil || err2 != nil {
		return
	}
	m.IntervalStart = &start
	m.IntervalEnd = &end
}
