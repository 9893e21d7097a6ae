//go:build linux

package runner

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// linuxCapability Linux平台能力实现
type linuxCapability struct{}

// openOutput 优先打开伪终端，使工具按行刷新输出
func (l *linuxCapability) openOutput(usePTY bool) (*outputChannel, error) {
	if usePTY {
		if out, err := openPTY(); err == nil {
			return out, nil
		}
	}
	return newPipeOutput()
}

// configure 新建会话，子进程不继承控制终端
func (l *linuxCapability) configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// terminate 向子进程所在的进程组发送SIGTERM，进程组不存在时退回到单个进程
func (l *linuxCapability) terminate(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGTERM); err == nil {
		return nil
	}
	return p.Signal(syscall.SIGTERM)
}

// openPTY 通过/dev/ptmx分配伪终端对
func openPTY() (*outputChannel, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	fd := int(master.Fd())
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, err
	}
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, err
	}

	slave, err := os.OpenFile("/dev/pts/"+strconv.FormatUint(uint64(n), 10), os.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0)
	if err != nil {
		master.Close()
		return nil, err
	}
	return &outputChannel{reader: master, childEnd: slave, pty: true}, nil
}

// isPTYClosed 子进程退出后读取伪终端主端返回EIO，视为流结束
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO)
}

// ptySupported 检查系统能否分配伪终端
func ptySupported() bool {
	_, err := os.Stat("/dev/ptmx")
	return err == nil
}

// getPlatformCapability 获取Linux平台的能力实现
func getPlatformCapability() platformCapability {
	return &linuxCapability{}
}
