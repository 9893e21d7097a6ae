// Package runner 配置定义
package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
)

// DefaultExecutable 测速工具的默认可执行文件名
const DefaultExecutable = "iperf3"

// Config 进程监管组件的配置结构
type Config struct {
	Executable string        // 测速工具可执行文件名或路径
	BundleDir  string        // 优先查找可执行文件的目录（随程序打包的工具）
	WorkDir    string        // 子进程工作目录，空表示可执行文件所在目录
	UsePTY     bool          // 在支持的平台上优先使用伪终端
	StopGrace  time.Duration // 发送终止信号后等待的时间，超时强制结束，0表示不强制
	ForceFlush bool          // 追加 --forceflush，要求工具每行立即刷新
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Executable: DefaultExecutable,
		BundleDir:  executableDir(),
		UsePTY:     true,
		StopGrace:  3 * time.Second,
		ForceFlush: true,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Executable) == "" {
		return errors.New("可执行文件名不能为空")
	}

	if c.StopGrace < 0 {
		return errors.New("停止等待时间不能为负数")
	}

	if c.StopGrace > time.Minute {
		return errors.New("停止等待时间不能超过1分钟")
	}

	return nil
}

// ResolveExecutable 解析可执行文件的完整路径
// 带路径分隔符的名称直接检查是否存在；裸名称先查找BundleDir，再查找PATH
func (c *Config) ResolveExecutable(name string) (string, error) {
	if name == "" {
		name = c.Executable
	}

	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%w: %s", core.ErrExecutableMissing, name)
		}
		return name, nil
	}

	if c.BundleDir != "" {
		candidate := filepath.Join(c.BundleDir, withExeSuffix(name))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrExecutableMissing, name)
	}
	return path, nil
}

// BuildCommand 使用配置的可执行文件和测试参数构建完整命令
func (c *Config) BuildCommand(tc *TestConfig) []string {
	cmd := []string{c.Executable}
	return append(cmd, tc.Args(c.ForceFlush)...)
}

// withExeSuffix 在Windows上为裸名称补全.exe后缀
func withExeSuffix(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}

// executableDir 获取当前程序所在目录
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// childEnv 构建子进程环境变量
// 可执行文件使用绝对路径时，把其所在目录放到PATH最前面，便于找到同目录下的依赖库
func childEnv(path string) []string {
	env := os.Environ()
	if !filepath.IsAbs(path) {
		return env
	}
	dir := filepath.Dir(path)
	for i, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(key, "PATH") {
			env[i] = key + "=" + dir + string(os.PathListSeparator) + value
			return env
		}
	}
	return append(env, "PATH="+dir)
}
