// Package server 提供浏览器控制界面所需的HTTP接口：
// 控制测试的JSON接口、SSE与WebSocket事件流、Prometheus指标与文件导出
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/broker"
	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "goiperf_http_requests_total",
	Help: "HTTP requests by route and status code",
}, []string{"route", "code"})

// Controller 服务端依赖的会话操作，由session.Manager实现
type Controller interface {
	Start(tc *runner.TestConfig) (core.SessionStatus, error)
	StartCommand(argv []string) (core.SessionStatus, error)
	Stop() error
	Clear()
	EnableBreakpoints(interval time.Duration) error
	DisableBreakpoints() (float64, int, error)
	Status() core.SessionStatus
	Stats() core.StatsSnapshot
	Samples() []core.BreakpointSample
	Lines() []core.LogLine
	Subscribe(name string, replay int) *broker.Subscription
	Subscribers() int
}

// Server Web服务
type Server struct {
	config   *Config
	ctl      Controller
	router   *mux.Router
	upgrader websocket.Upgrader

	// 关闭时取消，所有请求的ctx都派生自它，长连接据此退出
	baseCtx    context.Context
	cancelBase context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New 创建Web服务
func New(ctl Controller, config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     config,
		ctl:        ctl,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		shutdownCh: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.router = s.routes()
	return s, nil
}

// routes 注册所有路由
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	// 控制接口直接注册在根路由上，方法不匹配时返回405
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	r.HandleFunc("/api/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/api/shutdown", s.handleShutdown).Methods(http.MethodPost)
	r.HandleFunc("/api/breakpoint/start", s.handleBreakpointStart).Methods(http.MethodPost)
	r.HandleFunc("/api/breakpoint/stop", s.handleBreakpointStop).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/breakpoints", s.handleBreakpoints).Methods(http.MethodGet)
	r.HandleFunc("/api/export/log", s.handleExportLog).Methods(http.MethodGet)
	r.HandleFunc("/api/export/breakpoints", s.handleExportBreakpoints).Methods(http.MethodGet)

	r.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	} else {
		r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	}
	return r
}

// instrument 按路由模板统计请求数
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		counter := httpRequests.MustCurryWith(prometheus.Labels{"route": route})
		promhttp.InstrumentHandlerCounter(counter, next).ServeHTTP(w, r)
	})
}

// Handler 返回HTTP处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// ShutdownRequested 收到/api/shutdown并等待ShutdownGrace之后关闭
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// requestShutdown 延迟发出关闭信号，让当前响应先写回客户端
func (s *Server) requestShutdown() {
	go func() {
		time.Sleep(s.config.ShutdownGrace)
		s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	}()
}

// ListenAndServe 监听配置的地址并提供服务
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve 在ln上提供服务，直到ctx结束或收到关闭请求
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ln = netutil.LimitListener(ln, s.config.MaxConns)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Web服务已启动", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.cancelBase()
		return err
	case <-ctx.Done():
	case <-s.shutdownCh:
		log.Info("收到关闭请求")
	}

	// 先让事件流退出，再关闭服务
	s.cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	log.Info("Web服务已停止")
	return err
}
