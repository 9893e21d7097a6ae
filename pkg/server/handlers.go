package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/Kevin-Rudy/goiperf/pkg/export"
	"github.com/Kevin-Rudy/goiperf/pkg/runner"
	"github.com/charmbracelet/log"
)

// 未给出命令和配置时执行的默认命令
const defaultCommand = "iperf3 -v"

// response 控制接口的统一应答
type response struct {
	Status string         `json:"status"`
	Msg    string         `json:"msg"`
	Kind   core.ErrorKind `json:"kind,omitempty"`
}

// startRequest /api/start 的请求体，Command 优先于 Config
type startRequest struct {
	Command string            `json:"command"`
	Config  *runner.RawConfig `json:"config"`
}

type breakpointRequest struct {
	Interval float64 `json:"interval"` // 秒，0表示默认间隔
}

// statusResponse /api/status 的应答
type statusResponse struct {
	Session     core.SessionStatus `json:"session"`
	Elapsed     float64            `json:"elapsed"`
	Progress    float64            `json:"progress"`
	Subscribers int                `json:"subscribers"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("写入应答失败", "err", err)
	}
}

func writeOK(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, response{Status: "ok", Msg: msg})
}

func writeError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)
	writeJSON(w, statusCode(kind), response{Status: "error", Msg: err.Error(), Kind: kind})
}

// statusCode 错误分类对应的HTTP状态码
func statusCode(kind core.ErrorKind) int {
	switch kind {
	case core.KindConfigValidation:
		return http.StatusBadRequest
	case core.KindAlreadyRunning, core.KindNoActiveSession:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, response{Status: "error", Msg: r.Method + " not allowed"})
}

// decodeBody 解析JSON请求体，空请求体不算错误
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: 请求体格式错误: %v", core.ErrConfigValidation, err)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		status core.SessionStatus
		err    error
	)
	switch {
	case strings.TrimSpace(req.Command) != "" || req.Config == nil:
		command := req.Command
		if strings.TrimSpace(command) == "" {
			command = defaultCommand
		}
		var argv []string
		argv, err = runner.SplitCommand(command)
		if err == nil {
			status, err = s.ctl.StartCommand(argv)
		}
	default:
		var tc *runner.TestConfig
		tc, err = req.Config.Parse()
		if err == nil {
			status, err = s.ctl.Start(tc)
		}
	}
	if err != nil {
		log.Warn("启动测试失败", "remote", r.RemoteAddr, "err", err)
		writeError(w, err)
		return
	}

	log.Info("测试已启动", "remote", r.RemoteAddr, "session", status.ID, "command", status.Command)
	writeOK(w, "Started")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "Stopping...")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctl.Clear()
	writeOK(w, "Cleared")
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Stop(); err != nil && !errors.Is(err, core.ErrNoActiveSession) {
		log.Warn("停止测试失败", "err", err)
	}
	log.Info("收到远程关闭请求", "remote", r.RemoteAddr)
	writeOK(w, "Shutting down")
	s.requestShutdown()
}

func (s *Server) handleBreakpointStart(w http.ResponseWriter, r *http.Request) {
	var req breakpointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Interval < 0 {
		writeError(w, fmt.Errorf("%w: 采样间隔不能为负数", core.ErrConfigValidation))
		return
	}

	interval := time.Duration(req.Interval * float64(time.Second))
	if err := s.ctl.EnableBreakpoints(interval); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "Sampling")
}

func (s *Server) handleBreakpointStop(w http.ResponseWriter, r *http.Request) {
	avg, n, err := s.ctl.DisableBreakpoints()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, fmt.Sprintf("Stopped (%d samples, avg %.2f Mbps)", n, avg))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.ctl.Status()
	now := time.Now()
	writeJSON(w, http.StatusOK, statusResponse{
		Session:     status,
		Elapsed:     status.Elapsed(now),
		Progress:    status.Progress(now),
		Subscribers: s.ctl.Subscribers(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Stats())
}

func (s *Server) handleBreakpoints(w http.ResponseWriter, r *http.Request) {
	samples := s.ctl.Samples()
	if samples == nil {
		samples = []core.BreakpointSample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

func (s *Server) handleExportLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(export.LogFileName(time.Now())))
	if err := export.WriteLog(w, s.ctl.Lines()); err != nil {
		log.Warn("导出日志失败", "err", err)
	}
}

func (s *Server) handleExportBreakpoints(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(export.SamplesFileName(time.Now())))
	if err := export.WriteSamplesCSV(w, s.ctl.Samples()); err != nil {
		log.Warn("导出断点记录失败", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "goiperf: 未配置前端目录，请使用 --static 指定，或直接调用 /api 与 /stream")
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
