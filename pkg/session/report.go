package session

import (
	"fmt"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// summaryReport 生成测试结束时追加到日志的汇总行，没有测量值时为空
func summaryReport(stats core.StatsSnapshot, summaries []core.Summary, udp bool) []string {
	if stats.Count == 0 {
		return nil
	}

	lines := []string{
		"========= 测试汇总 =========",
		fmt.Sprintf("平均带宽: %.2f Mbps", stats.AverageMbps),
		fmt.Sprintf("峰值带宽: %.2f Mbps", stats.MaxMbps),
	}

	if udp && stats.JitterSamples > 0 {
		lines = append(lines,
			fmt.Sprintf("平均抖动: %.3f ms", stats.AverageJitterMs),
			fmt.Sprintf("丢包情况: %d/%d (%.2f%%)", stats.LostPackets, stats.TotalPackets, stats.LossRate*100),
		)
	}
	if !udp && stats.Retransmits > 0 {
		lines = append(lines, fmt.Sprintf("重传次数: %d", stats.Retransmits))
	}

	if s, ok := pickSummary(summaries, core.RoleSender); ok {
		lines = append(lines, fmt.Sprintf("发送端: %.2f Mbps", s.Metric.BandwidthMbps))
	}
	if s, ok := pickSummary(summaries, core.RoleReceiver); ok {
		lines = append(lines, fmt.Sprintf("接收端: %.2f Mbps", s.Metric.BandwidthMbps))
	}

	return append(lines, "===========================")
}

// pickSummary 选择指定角色的汇总行，多流时优先[SUM]行
func pickSummary(summaries []core.Summary, role core.SummaryRole) (core.Summary, bool) {
	var found core.Summary
	ok := false
	for _, s := range summaries {
		if s.Role != role {
			continue
		}
		if !ok || s.Aggregate || !found.Aggregate {
			found = s
			ok = true
		}
	}
	return found, ok
}
