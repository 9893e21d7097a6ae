//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// windowsCapability Windows平台能力实现
type windowsCapability struct{}

// openOutput Windows不支持伪终端方式，使用管道
func (w *windowsCapability) openOutput(usePTY bool) (*outputChannel, error) {
	return newPipeOutput()
}

// configure 隐藏窗口且不创建控制台
func (w *windowsCapability) configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

// terminate Windows没有SIGTERM，直接结束进程
func (w *windowsCapability) terminate(p *os.Process) error {
	return p.Kill()
}

func isPTYClosed(err error) bool { return false }

func ptySupported() bool { return false }

// getPlatformCapability 获取Windows平台的能力实现
func getPlatformCapability() platformCapability {
	return &windowsCapability{}
}
