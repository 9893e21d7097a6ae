package core

import "errors"

// ErrorKind 错误分类，用于控制接口返回状态码
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindConfigValidation  ErrorKind = "ConfigValidationError"
	KindExecutableMissing ErrorKind = "ExecutableMissing"
	KindLaunchFailure     ErrorKind = "LaunchFailure"
	KindAlreadyRunning    ErrorKind = "AlreadyRunning"
	KindNoActiveSession   ErrorKind = "NoActiveSession"
	KindStreamIO          ErrorKind = "StreamIOError"
	KindPrematureExit     ErrorKind = "PrematureExit"
	KindDetached          ErrorKind = "Detached"
	KindInternal          ErrorKind = "Internal"
)

var (
	// ErrConfigValidation 配置参数非法，在启动进程之前被拒绝
	ErrConfigValidation = errors.New("配置参数错误")

	// ErrExecutableMissing 找不到测速工具的可执行文件
	ErrExecutableMissing = errors.New("找不到可执行文件")

	// ErrLaunchFailure 进程创建失败（权限、参数等）
	ErrLaunchFailure = errors.New("进程启动失败")

	// ErrAlreadyRunning 已有测试正在运行
	ErrAlreadyRunning = errors.New("测试已在运行中")

	// ErrNoActiveSession 当前没有运行中的测试
	ErrNoActiveSession = errors.New("当前没有运行中的测试")

	// ErrStreamIO 读取子进程输出时发生I/O错误
	ErrStreamIO = errors.New("读取进程输出失败")

	// ErrPrematureExit 进程以非零退出码结束
	ErrPrematureExit = errors.New("进程异常退出")

	// ErrDetached 消费者已解除挂载
	ErrDetached = errors.New("订阅已关闭")
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrConfigValidation, KindConfigValidation},
	{ErrExecutableMissing, KindExecutableMissing},
	{ErrLaunchFailure, KindLaunchFailure},
	{ErrAlreadyRunning, KindAlreadyRunning},
	{ErrNoActiveSession, KindNoActiveSession},
	{ErrStreamIO, KindStreamIO},
	{ErrPrematureExit, KindPrematureExit},
	{ErrDetached, KindDetached},
}

// KindOf 返回错误所属的分类，nil返回KindNone，未知错误返回KindInternal
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
