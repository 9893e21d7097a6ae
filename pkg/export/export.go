// Package export 把日志与断点记录保存为文件
// 日志为纯文本，断点记录为CSV
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// 断点记录CSV表头
var samplesHeader = []string{"sequence", "elapsed_seconds", "bandwidth_mbps", "wall_clock_time"}

// WriteLog 逐行写出日志，每行带时间戳
func WriteLog(w io.Writer, lines []core.LogLine) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSamplesCSV 以CSV格式写出断点记录
func WriteSamplesCSV(w io.Writer, samples []core.BreakpointSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(samplesHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{
			strconv.Itoa(s.Seq),
			strconv.FormatFloat(s.ElapsedSeconds, 'f', 1, 64),
			strconv.FormatFloat(s.BandwidthMbps, 'f', 2, 64),
			s.Time.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSamplesText 以文本格式写出断点记录，与界面上显示的一致
func WriteSamplesText(w io.Writer, samples []core.BreakpointSample) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		if _, err := bw.WriteString(s.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LogFileName 日志文件名 iperf_main_HHMMSS.txt
func LogFileName(now time.Time) string {
	return fmt.Sprintf("iperf_main_%s.txt", now.Format("150405"))
}

// SamplesFileName 断点记录文件名 iperf_bp_HHMMSS.csv
func SamplesFileName(now time.Time) string {
	return fmt.Sprintf("iperf_bp_%s.csv", now.Format("150405"))
}

// SaveLog 把日志保存到dir目录，返回文件路径
func SaveLog(dir string, lines []core.LogLine, now time.Time) (string, error) {
	return save(filepath.Join(dir, LogFileName(now)), func(w io.Writer) error {
		return WriteLog(w, lines)
	})
}

// SaveSamples 把断点记录保存到dir目录，返回文件路径
func SaveSamples(dir string, samples []core.BreakpointSample, now time.Time) (string, error) {
	return save(filepath.Join(dir, SamplesFileName(now)), func(w io.Writer) error {
		return WriteSamplesCSV(w, samples)
	})
}

func save(path string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
