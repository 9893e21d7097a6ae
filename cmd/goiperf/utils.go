package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/charmbracelet/log"
)

// 程序信息常量
const (
	AppName    = "goiperf"
	AppVersion = "0.1.0"
	AppDesc    = "iperf3 测速的终端界面与网页控制台"
)

// setupLogging 配置全局日志，返回关闭日志文件的函数
// TUI模式下未指定日志文件时丢弃日志，避免破坏终端界面
func setupLogging(cfg LogConfig, tuiMode bool) (func(), error) {
	log.SetReportTimestamp(true)
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		return func() { f.Close() }, nil
	case tuiMode:
		log.SetOutput(io.Discard)
	}
	return func() {}, nil
}

// showSystemInfo 显示系统环境信息
func showSystemInfo(usePTY bool) {
	osName, outputMode := runner.GetSystemInfo(usePTY)
	fmt.Println("\n系统信息:")
	fmt.Printf("  操作系统: %s\n", osName)
	fmt.Printf("  输出方式: %s\n", outputMode)
}

// printUsageInstructions 显示TUI操作说明
func printUsageInstructions() {
	fmt.Println("操作说明:")
	fmt.Println("  x - 停止测试      r - 重新运行")
	fmt.Println("  b - 开始/停止断点采样")
	fmt.Println("  s - 保存日志      S - 保存断点记录")
	fmt.Println("  c - 清空          ↑/↓ - 切换曲线")
	fmt.Println("  q 或 Ctrl+C - 退出程序")
	fmt.Println("========================================")
}
