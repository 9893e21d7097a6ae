// Package runner 负责启动测速工具子进程，合并其输出并逐行读取
// 根据操作系统自动选择伪终端或管道作为输出通道
package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// Supervisor 进程监管者，同一时刻最多持有一个运行中的子进程
type Supervisor struct {
	config   *Config
	platform platformCapability

	mu     sync.Mutex
	active *Handle
}

// Handle 一次启动的子进程句柄
type Handle struct {
	cmd       *exec.Cmd
	argv      []string
	startTime time.Time
	lines     *LineSource

	stopping atomic.Bool   // 已请求停止
	done     chan struct{} // 进程回收后关闭
	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// NewSupervisor 创建进程监管者
func NewSupervisor(config *Config) (*Supervisor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Supervisor{
		config:   config,
		platform: getPlatformCapability(),
	}, nil
}

// Config 返回监管者使用的配置
func (s *Supervisor) Config() *Config {
	return s.config
}

// Start 启动子进程
// stdin为空设备，stdout和stderr合并到同一个输出通道
func (s *Supervisor) Start(argv []string, workDir string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, core.ErrAlreadyRunning
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: 命令不能为空", core.ErrConfigValidation)
	}

	path, err := s.config.ResolveExecutable(argv[0])
	if err != nil {
		return nil, err
	}

	out, err := s.platform.openOutput(s.config.UsePTY)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建输出通道失败: %v", core.ErrLaunchFailure, err)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = childEnv(path)
	cmd.Dir = workDir
	if cmd.Dir == "" {
		cmd.Dir = s.config.WorkDir
	}
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(path)
	}
	cmd.Stdin = nil
	cmd.Stdout = out.childEnd
	cmd.Stderr = out.childEnd
	s.platform.configure(cmd)

	if err := cmd.Start(); err != nil {
		out.close()
		return nil, fmt.Errorf("%w: %v", core.ErrLaunchFailure, err)
	}
	// 父进程不再持有写入端，子进程退出后读取端才能读到结束
	out.childEnd.Close()

	h := &Handle{
		cmd:       cmd,
		argv:      append([]string(nil), argv...),
		startTime: time.Now(),
		lines:     NewLineSource(out.reader, out.pty),
		done:      make(chan struct{}),
	}
	s.active = h
	return h, nil
}

// Active 返回当前运行中的句柄，没有则返回nil
func (s *Supervisor) Active() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop 请求子进程退出，可重复调用
// 超过StopGrace仍未退出时强制结束
func (s *Supervisor) Stop(h *Handle) error {
	if h == nil || h.Exited() {
		return nil
	}
	if !h.stopping.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.platform.terminate(h.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		// 终止信号发送失败时直接强制结束
		if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("结束进程失败: %w", killErr)
		}
		return nil
	}

	if grace := s.config.StopGrace; grace > 0 {
		go func() {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-h.done:
			case <-timer.C:
				h.cmd.Process.Kill()
			}
		}()
	}
	return nil
}

// Wait 等待子进程退出并返回退出码，结果被缓存，可重复调用
// 非零退出码不作为错误返回
func (s *Supervisor) Wait(h *Handle) (int, error) {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		h.exitCode = h.cmd.ProcessState.ExitCode()

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			h.waitErr = err
		}
		close(h.done)

		s.mu.Lock()
		if s.active == h {
			s.active = nil
		}
		s.mu.Unlock()
	})
	<-h.done
	return h.exitCode, h.waitErr
}

// Argv 启动命令
func (h *Handle) Argv() []string {
	return append([]string(nil), h.argv...)
}

// PID 子进程ID
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// StartTime 启动时间
func (h *Handle) StartTime() time.Time {
	return h.startTime
}

// Lines 输出行源
func (h *Handle) Lines() *LineSource {
	return h.lines
}

// Done 进程回收后关闭的通道
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited 进程是否已被回收
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// StopRequested 是否已请求停止
func (h *Handle) StopRequested() bool {
	return h.stopping.Load()
}
