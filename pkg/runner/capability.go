// Package runner - 平台能力接口定义
// 定义了跨平台的输出通道创建、进程属性与终止方式
package runner

import (
	"os"
	"os/exec"
	"runtime"
)

// platformCapability 定义平台能力接口
// 每个平台实现此接口来提供子进程输出通道与进程控制
type platformCapability interface {
	// openOutput 创建合并stdout/stderr的输出通道
	// Linux: 优先伪终端，失败时降级为管道
	// 其他平台: 管道
	openOutput(usePTY bool) (*outputChannel, error)

	// configure 设置子进程属性
	// Unix: 新建会话，与控制终端分离
	// Windows: 隐藏窗口，不创建控制台
	configure(cmd *exec.Cmd)

	// terminate 请求子进程退出
	// Unix: SIGTERM
	// Windows: 直接结束进程
	terminate(p *os.Process) error
}

// outputChannel 子进程输出通道
type outputChannel struct {
	reader   *os.File // 父进程读取端
	childEnd *os.File // 交给子进程的写入端，启动后在父进程中关闭
	pty      bool     // 是否为伪终端
}

// close 关闭两端，用于启动失败时清理
func (o *outputChannel) close() {
	if o.childEnd != nil {
		o.childEnd.Close()
	}
	if o.reader != nil {
		o.reader.Close()
	}
}

// newPipeOutput 使用匿名管道创建输出通道
func newPipeOutput() (*outputChannel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &outputChannel{reader: r, childEnd: w}, nil
}

// GetSystemInfo 获取操作系统名称与输出通道模式
func GetSystemInfo(usePTY bool) (osName, outputMode string) {
	switch runtime.GOOS {
	case "windows":
		osName = "Windows"
	case "linux":
		osName = "Linux"
	case "darwin":
		osName = "macOS"
	default:
		osName = runtime.GOOS
	}

	if usePTY && ptySupported() {
		outputMode = "伪终端 (PTY)"
	} else {
		outputMode = "管道 (Pipe)"
	}
	return
}
