package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/publish"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/Kevin-Rudy/goiperf/pkg/server"
	"github.com/Kevin-Rudy/goiperf/pkg/session"
	"github.com/Kevin-Rudy/goiperf/pkg/tui"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// loadAppConfig 构建并验证配置
func loadAppConfig(c *cli.Context) (*AppConfig, error) {
	appConfig, err := buildConfigFromCLI(c)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("配置加载失败: %v", err), 1)
	}
	if err := validateConfig(appConfig); err != nil {
		return nil, cli.Exit(fmt.Sprintf("配置验证失败: %v", err), 1)
	}
	return appConfig, nil
}

// runTUI 运行一次测试并显示终端界面
func runTUI(c *cli.Context) error {
	appConfig, err := loadAppConfig(c)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(appConfig.Log, true)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法打开日志文件: %v", err), 1)
	}
	defer closeLog()

	argv, err := appConfig.command()
	if err != nil {
		return cli.Exit(fmt.Sprintf("测试参数错误: %v", err), 1)
	}

	printRunningConfig(appConfig, argv)
	showSystemInfo(appConfig.Session.Runner.UsePTY)

	mgr, err := session.New(appConfig.Session)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法创建会话管理器: %v", err), 1)
	}

	osName, outputMode := runner.GetSystemInfo(appConfig.Session.Runner.UsePTY)
	appConfig.TUI.SystemInfo = osName + " " + outputMode

	printUsageInstructions()

	tuiInstance := tui.NewTUI(mgr, argv, appConfig.TUI)
	runErr := tuiInstance.Run()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		log.Warn("测试进程未能在限定时间内退出", "err", err)
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("TUI运行出错: %v", runErr), 1)
	}

	fmt.Println("\n程序已退出")
	return nil
}

// runServe 启动网页控制台，直到收到信号或/api/shutdown
func runServe(c *cli.Context) error {
	appConfig, err := loadAppConfig(c)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(appConfig.Log, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法打开日志文件: %v", err), 1)
	}
	defer closeLog()

	showSystemInfo(appConfig.Session.Runner.UsePTY)

	mgr, err := session.New(appConfig.Session)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法创建会话管理器: %v", err), 1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(ctx); err != nil {
			log.Warn("测试进程未能在限定时间内退出", "err", err)
		}
	}()

	srv, err := server.New(mgr, appConfig.Server)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法创建Web服务: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// 服务结束（包括远程关闭）时让其他任务一起退出
		defer cancel()
		return srv.ListenAndServe(gctx)
	})

	if appConfig.Publish != nil {
		pub, err := publish.Connect(appConfig.Publish)
		if err != nil {
			cancel()
			g.Wait()
			return cli.Exit(fmt.Sprintf("无法连接NATS: %v", err), 1)
		}
		defer pub.Close()

		sub := mgr.Subscribe("nats", 0)
		g.Go(func() error {
			defer sub.Close()
			return pub.Run(gctx, sub)
		})
	}

	fmt.Printf("网页控制台: http://%s\n", displayAddr(appConfig.Server.Addr))
	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("Web服务出错: %v", err), 1)
	}

	fmt.Println("\n程序已退出")
	return nil
}

// displayAddr 把只有端口的地址补全为localhost
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// printRunningConfig 打印运行配置信息
func printRunningConfig(config *AppConfig, argv []string) {
	fmt.Printf("测试命令: %s\n", strings.Join(argv, " "))
	fmt.Printf("停止等待: %v\n", config.Session.Runner.StopGrace)
	fmt.Printf("采样间隔: %v\n", config.TUI.BreakpointInterval)
	fmt.Printf("日志容量: %d\n", config.Session.MaxLines)
}
