package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/publish"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/Kevin-Rudy/goiperf/pkg/server"
	"github.com/Kevin-Rudy/goiperf/pkg/session"
	"github.com/Kevin-Rudy/goiperf/pkg/tui"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// FileConfig 配置文件的结构，未出现的字段保留默认值
type FileConfig struct {
	Runner struct {
		Executable string        `yaml:"executable"`
		BundleDir  string        `yaml:"bundle_dir"`
		WorkDir    string        `yaml:"work_dir"`
		PTY        *bool         `yaml:"pty"`
		StopGrace  time.Duration `yaml:"stop_grace"`
	} `yaml:"runner"`

	Test               runner.RawConfig `yaml:"test"`
	Command            string           `yaml:"command"`
	MaxLines           int              `yaml:"max_lines"`
	BreakpointInterval time.Duration    `yaml:"breakpoint_interval"`

	Server struct {
		Addr      string `yaml:"addr"`
		MaxConns  int    `yaml:"max_conns"`
		Replay    *int   `yaml:"replay"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	Log LogConfig `yaml:"log"`
}

// LoadConfig 读取YAML配置文件
func LoadConfig(filePath string) (*FileConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &cfg, nil
}

// AppConfig 应用层配置聚合
type AppConfig struct {
	Session *session.Config
	TUI     *tui.Config
	Server  *server.Config
	Publish *publish.Config // nil 表示不转发到NATS
	Test    runner.RawConfig
	Command string // 原始命令行，非空时优先于Test
	Log     LogConfig
}

// buildConfigFromCLI 合并默认值、配置文件与命令行参数，显式设置的参数优先
func buildConfigFromCLI(c *cli.Context) (*AppConfig, error) {
	config := &AppConfig{
		Session: session.DefaultConfig(),
		TUI:     tui.DefaultConfig(),
		Server:  server.DefaultConfig(),
	}

	if path := c.String("config"); path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config.applyFile(file)
	}

	config.applyFlags(c)
	return config, nil
}

// applyFile 应用配置文件中出现的字段
func (a *AppConfig) applyFile(f *FileConfig) {
	r := a.Session.Runner
	if f.Runner.Executable != "" {
		r.Executable = f.Runner.Executable
	}
	if f.Runner.BundleDir != "" {
		r.BundleDir = f.Runner.BundleDir
	}
	if f.Runner.WorkDir != "" {
		r.WorkDir = f.Runner.WorkDir
	}
	if f.Runner.PTY != nil {
		r.UsePTY = *f.Runner.PTY
	}
	if f.Runner.StopGrace > 0 {
		r.StopGrace = f.Runner.StopGrace
	}

	a.Test = f.Test
	a.Command = f.Command
	if f.MaxLines > 0 {
		a.Session.MaxLines = f.MaxLines
	}
	if f.BreakpointInterval > 0 {
		a.TUI.BreakpointInterval = f.BreakpointInterval
	}

	if f.Server.Addr != "" {
		a.Server.Addr = f.Server.Addr
	}
	if f.Server.MaxConns > 0 {
		a.Server.MaxConns = f.Server.MaxConns
	}
	if f.Server.Replay != nil {
		a.Server.Replay = *f.Server.Replay
	}
	a.Server.StaticDir = f.Server.StaticDir

	if f.NATS.URL != "" {
		a.Publish = publish.DefaultConfig()
		a.Publish.URL = f.NATS.URL
		if f.NATS.Subject != "" {
			a.Publish.Subject = f.NATS.Subject
		}
	}

	a.Log = f.Log
}

// applyFlags 应用显式设置的命令行参数
func (a *AppConfig) applyFlags(c *cli.Context) {
	r := a.Session.Runner
	if c.IsSet("executable") {
		r.Executable = c.String("executable")
	}
	if c.IsSet("bundle-dir") {
		r.BundleDir = c.String("bundle-dir")
	}
	if c.IsSet("work-dir") {
		r.WorkDir = c.String("work-dir")
	}
	if c.IsSet("no-pty") {
		r.UsePTY = !c.Bool("no-pty")
	}
	if c.IsSet("stop-grace") {
		r.StopGrace = c.Duration("stop-grace")
	}
	if c.IsSet("max-lines") {
		a.Session.MaxLines = c.Int("max-lines")
	}
	if c.IsSet("debug") {
		a.Log.Debug = c.Bool("debug")
	}
	if c.IsSet("log-file") {
		a.Log.File = c.String("log-file")
	}

	// 测试参数
	if c.IsSet("host") {
		a.Test.Host = c.String("host")
	}
	if c.IsSet("port") {
		a.Test.Port = strconv.Itoa(c.Int("port"))
	}
	if c.IsSet("udp") && c.Bool("udp") {
		a.Test.Protocol = string(runner.ProtocolUDP)
	}
	if c.IsSet("bandwidth") {
		a.Test.Bandwidth = c.String("bandwidth")
	}
	if c.IsSet("reverse") && c.Bool("reverse") {
		a.Test.Direction = string(runner.DirectionDownload)
	}
	if c.IsSet("time") {
		a.Test.Duration = strconv.Itoa(c.Int("time"))
	}
	if c.IsSet("interval") {
		a.Test.Interval = strconv.FormatFloat(c.Float64("interval"), 'f', -1, 64)
	}
	if c.IsSet("parallel") {
		a.Test.Parallel = strconv.Itoa(c.Int("parallel"))
	}
	if c.IsSet("command") {
		a.Command = c.String("command")
	}

	// 界面参数
	if c.IsSet("breakpoint-interval") {
		a.TUI.BreakpointInterval = c.Duration("breakpoint-interval")
	}
	if c.IsSet("refresh-rate") {
		a.TUI.RefreshInterval = c.Duration("refresh-rate")
	}
	if c.IsSet("window") {
		a.TUI.WindowDuration = c.Duration("window")
	}
	if c.IsSet("buffer") {
		a.TUI.MaxHistorySize = c.Int("buffer")
	}

	// Web服务参数
	if c.IsSet("addr") {
		a.Server.Addr = c.String("addr")
	}
	if c.IsSet("static") {
		a.Server.StaticDir = c.String("static")
	}
	if c.IsSet("max-conns") {
		a.Server.MaxConns = c.Int("max-conns")
	}
	if c.IsSet("replay") {
		a.Server.Replay = c.Int("replay")
	}
	if c.IsSet("nats-url") {
		if a.Publish == nil {
			a.Publish = publish.DefaultConfig()
		}
		a.Publish.URL = c.String("nats-url")
	}
	if c.IsSet("nats-subject") && a.Publish != nil {
		a.Publish.Subject = c.String("nats-subject")
	}
}

// command 返回要执行的命令行：原始命令优先，否则由测试参数生成
func (a *AppConfig) command() ([]string, error) {
	if a.Command != "" {
		return runner.SplitCommand(a.Command)
	}
	tc, err := a.Test.Parse()
	if err != nil {
		return nil, err
	}
	return a.Session.Runner.BuildCommand(tc), nil
}

// validateConfig 验证配置的合理性
func validateConfig(config *AppConfig) error {
	if err := config.Session.Validate(); err != nil {
		return fmt.Errorf("会话配置错误: %v", err)
	}

	if err := config.TUI.Validate(); err != nil {
		return fmt.Errorf("tui配置错误: %v", err)
	}

	if err := config.Server.Validate(); err != nil {
		return fmt.Errorf("web服务配置错误: %v", err)
	}

	if config.Publish != nil {
		if err := config.Publish.Validate(); err != nil {
			return fmt.Errorf("nats配置错误: %v", err)
		}
	}

	return nil
}
