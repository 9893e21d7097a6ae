package runner

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/google/shlex"
)

// Protocol 传输协议
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Direction 测试方向
type Direction string

const (
	DirectionUpload   Direction = "upload"   // 客户端 -> 服务器
	DirectionDownload Direction = "download" // 服务器 -> 客户端，对应工具的反向模式
)

// 带宽限制格式: "100M"、"1.5G"、"800K"、"1000000"
var bandwidthFormat = regexp.MustCompile(`^\d+(\.\d+)?[KMGkmg]?$`)

// TestConfig 一次测速的参数，已完成类型转换
type TestConfig struct {
	Host      string    `json:"host" yaml:"host"`
	Port      int       `json:"port" yaml:"port"`
	Protocol  Protocol  `json:"protocol" yaml:"protocol"`
	Bandwidth string    `json:"bandwidth" yaml:"bandwidth"` // 仅UDP
	Direction Direction `json:"direction" yaml:"direction"`
	Duration  int       `json:"duration" yaml:"duration"` // 整秒
	Interval  float64   `json:"interval" yaml:"interval"` // 报告间隔(s)
	Parallel  int       `json:"parallel" yaml:"parallel"` // 并行流数
}

// DefaultTestConfig 返回默认测试参数
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		Host:      "127.0.0.1",
		Port:      5201,
		Protocol:  ProtocolTCP,
		Bandwidth: "100M",
		Direction: DirectionUpload,
		Duration:  10,
		Interval:  1,
		Parallel:  1,
	}
}

// UDP 是否为UDP测试
func (tc *TestConfig) UDP() bool {
	return tc.Protocol == ProtocolUDP
}

// Validate 验证测试参数，错误均归类为配置错误
func (tc *TestConfig) Validate() error {
	if strings.TrimSpace(tc.Host) == "" {
		return invalid("服务器地址不能为空")
	}
	if strings.ContainsAny(tc.Host, " \t") {
		return invalid("服务器地址不能包含空白字符")
	}

	if tc.Port <= 0 || tc.Port > 65535 {
		return invalid("端口必须在1-65535之间")
	}

	if tc.Protocol != ProtocolTCP && tc.Protocol != ProtocolUDP {
		return invalid("协议必须是tcp或udp")
	}

	if tc.UDP() && tc.Bandwidth != "" && !bandwidthFormat.MatchString(tc.Bandwidth) {
		return invalid("UDP带宽格式错误，例如 100M")
	}

	if tc.Direction != DirectionUpload && tc.Direction != DirectionDownload {
		return invalid("方向必须是upload或download")
	}

	if tc.Duration < 0 {
		return invalid("持续时间不能为负数")
	}

	if math.IsNaN(tc.Interval) || math.IsInf(tc.Interval, 0) || tc.Interval <= 0 {
		return invalid("报告间隔必须为大于0的有限数")
	}

	if tc.Parallel < 1 || tc.Parallel > 128 {
		return invalid("并行流数必须在1-128之间")
	}

	return nil
}

// Args 构建测速工具的命令行参数（不含可执行文件）
func (tc *TestConfig) Args(forceFlush bool) []string {
	args := []string{
		"-c", tc.Host,
		"-p", strconv.Itoa(tc.Port),
		"-i", strconv.FormatFloat(tc.Interval, 'f', -1, 64),
	}
	if forceFlush {
		args = append(args, "--forceflush")
	}

	if tc.UDP() {
		args = append(args, "-u")
		if tc.Bandwidth != "" {
			args = append(args, "-b", tc.Bandwidth)
		}
	}

	if tc.Direction == DirectionDownload {
		args = append(args, "-R")
	}

	args = append(args, "-t", strconv.Itoa(tc.Duration))

	if tc.Parallel > 1 {
		args = append(args, "-P", strconv.Itoa(tc.Parallel))
	}
	return args
}

// RawConfig 用户输入的原始参数（表单、JSON、配置文件），全部为字符串
// 空字段保留默认值
type RawConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      string `json:"port" yaml:"port"`
	Protocol  string `json:"protocol" yaml:"protocol"`
	Bandwidth string `json:"bandwidth" yaml:"bandwidth"`
	Direction string `json:"direction" yaml:"direction"`
	Duration  string `json:"duration" yaml:"duration"`
	Interval  string `json:"interval" yaml:"interval"`
	Parallel  string `json:"parallel" yaml:"parallel"`
}

// Parse 将原始参数转换为TestConfig并验证
func (r RawConfig) Parse() (*TestConfig, error) {
	tc := DefaultTestConfig()

	if v := strings.TrimSpace(r.Host); v != "" {
		tc.Host = v
	}
	if v := strings.TrimSpace(r.Port); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalid("端口必须为整数")
		}
		tc.Port = port
	}
	if v := strings.TrimSpace(r.Protocol); v != "" {
		tc.Protocol = Protocol(strings.ToLower(v))
	}
	if v := strings.TrimSpace(r.Bandwidth); v != "" {
		tc.Bandwidth = v
	}
	if v := strings.TrimSpace(r.Direction); v != "" {
		tc.Direction = Direction(strings.ToLower(v))
	}
	if v := strings.TrimSpace(r.Duration); v != "" {
		duration, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalid("持续时间必须为整数")
		}
		tc.Duration = duration
	}
	if v := strings.TrimSpace(r.Interval); v != "" {
		interval, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, invalid("报告间隔必须为数字")
		}
		tc.Interval = interval
	}
	// 并行流数解析失败时保持1
	if v := strings.TrimSpace(r.Parallel); v != "" {
		if parallel, err := strconv.Atoi(v); err == nil {
			tc.Parallel = parallel
		}
	}

	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return tc, nil
}

// SplitCommand 按shell规则拆分原始命令字符串
func SplitCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: 命令解析失败: %v", core.ErrConfigValidation, err)
	}
	if len(argv) == 0 {
		return nil, invalid("命令不能为空")
	}
	return argv, nil
}

// IsUDP 判断命令行参数是否请求UDP测试
func IsUDP(argv []string) bool {
	for _, arg := range argv {
		if arg == "-u" || arg == "--udp" {
			return true
		}
	}
	return false
}

// invalid 构造配置错误
func invalid(msg string) error {
	return fmt.Errorf("%w: %s", core.ErrConfigValidation, msg)
}
