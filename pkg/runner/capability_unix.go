//go:build !linux && !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// unixCapability 非Linux的类Unix平台能力实现（macOS、BSD）
type unixCapability struct{}

// openOutput 仅使用管道，依靠--forceflush保证逐行输出
func (u *unixCapability) openOutput(usePTY bool) (*outputChannel, error) {
	return newPipeOutput()
}

// configure 新建会话
func (u *unixCapability) configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// terminate 发送SIGTERM
func (u *unixCapability) terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

func isPTYClosed(err error) bool { return false }

func ptySupported() bool { return false }

// getPlatformCapability 获取类Unix平台的能力实现
func getPlatformCapability() platformCapability {
	return &unixCapability{}
}
