package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/urfave/cli/v2"
)

// createCliApp 创建CLI应用实例
func createCliApp() *cli.App {
	app := &cli.App{
		Name:      AppName,
		Version:   AppVersion,
		Usage:     AppDesc,
		Flags:     append(createCommonFlags(), createTestFlags()...),
		Action:    runTUI,
		ArgsUsage: " ",
	}

	app.Commands = createCommands()

	return app
}

// createCommonFlags 所有命令共用的参数
func createCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"f"},
			Usage:   "YAML配置文件路径，命令行参数优先",
		},
		&cli.StringFlag{
			Name:  "executable",
			Value: runner.DefaultExecutable,
			Usage: "测速工具可执行文件名或路径",
		},
		&cli.StringFlag{
			Name:  "bundle-dir",
			Usage: "优先查找测速工具的目录（默认为程序所在目录）",
		},
		&cli.StringFlag{
			Name:  "work-dir",
			Usage: "测速工具的工作目录，也是保存日志的目录",
		},
		&cli.BoolFlag{
			Name:  "no-pty",
			Usage: "不使用伪终端，改用管道读取输出",
		},
		&cli.DurationFlag{
			Name:  "stop-grace",
			Value: 3 * time.Second,
			Usage: "停止测试时等待进程退出的时间，超时强制结束",
		},
		&cli.IntFlag{
			Name:  "max-lines",
			Value: 5000,
			Usage: "日志保留行数",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "输出调试日志",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "日志文件路径，TUI模式下未指定时丢弃日志",
		},
	}
}

// createTestFlags 测试参数，短名称与测速工具保持一致
func createTestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Aliases: []string{"c"},
			Value:   "127.0.0.1",
			Usage:   "服务器地址",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   5201,
			Usage:   "服务器端口",
		},
		&cli.BoolFlag{
			Name:    "udp",
			Aliases: []string{"u"},
			Usage:   "使用UDP",
		},
		&cli.StringFlag{
			Name:    "bandwidth",
			Aliases: []string{"b"},
			Value:   "100M",
			Usage:   "UDP目标带宽 (例如: 100M, 1G)",
		},
		&cli.BoolFlag{
			Name:    "reverse",
			Aliases: []string{"R"},
			Usage:   "反向测试（下载）",
		},
		&cli.IntFlag{
			Name:    "time",
			Aliases: []string{"t"},
			Value:   10,
			Usage:   "测试时长(秒)",
		},
		&cli.Float64Flag{
			Name:    "interval",
			Aliases: []string{"i"},
			Value:   1,
			Usage:   "报告间隔(秒)",
		},
		&cli.IntFlag{
			Name:    "parallel",
			Aliases: []string{"P"},
			Value:   1,
			Usage:   "并行流数量",
		},
		&cli.StringFlag{
			Name:  "command",
			Usage: "直接执行的完整命令行，设置后忽略上面的测试参数",
		},
		&cli.DurationFlag{
			Name:  "breakpoint-interval",
			Value: 5 * time.Second,
			Usage: "按 b 开启断点采样时的间隔",
		},
		&cli.DurationFlag{
			Name:  "refresh-rate",
			Value: 200 * time.Millisecond,
			Usage: "UI刷新频率 (例如: 100ms, 500ms)",
		},
		&cli.DurationFlag{
			Name:  "window",
			Value: time.Minute,
			Usage: "带宽曲线的时间窗口",
		},
		&cli.IntFlag{
			Name:  "buffer",
			Value: 600,
			Usage: "每条曲线保留的数据点数",
		},
	}
}

// createServeFlags Web服务参数
func createServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Value: "localhost:8000",
			Usage: "监听地址",
		},
		&cli.StringFlag{
			Name:  "static",
			Usage: "前端静态文件目录",
		},
		&cli.IntFlag{
			Name:  "max-conns",
			Value: 64,
			Usage: "同时连接数上限",
		},
		&cli.IntFlag{
			Name:  "replay",
			Value: 50,
			Usage: "事件流连接时回放的日志行数",
		},
		&cli.StringFlag{
			Name:  "nats-url",
			Usage: "把事件转发到该NATS服务器，空表示不转发",
		},
		&cli.StringFlag{
			Name:  "nats-subject",
			Value: "goiperf.events",
			Usage: "NATS主题前缀",
		},
	}
}

// createCommands 创建子命令
func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "run",
			Usage:  "运行一次测试并在终端界面中显示（默认）",
			Flags:  append(createCommonFlags(), createTestFlags()...),
			Action: runTUI,
		},
		{
			Name:   "serve",
			Usage:  "启动网页控制台",
			Flags:  append(createCommonFlags(), createServeFlags()...),
			Action: runServe,
		},
		{
			Name:  "version",
			Usage: "显示详细版本信息",
			Action: func(c *cli.Context) error {
				osName, outputMode := runner.GetSystemInfo(!c.Bool("no-pty"))
				fmt.Printf("%s v%s\n", AppName, AppVersion)
				fmt.Printf("描述: %s\n", AppDesc)
				fmt.Printf("系统: %s\n", osName)
				fmt.Printf("输出: %s\n", outputMode)
				fmt.Printf("Go: %s\n", runtime.Version())
				return nil
			},
		},
	}
}
