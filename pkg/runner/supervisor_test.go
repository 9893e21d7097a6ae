package runner

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript 写入一个可执行的sh脚本，模拟测速工具
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("需要/bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-iperf3")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// readAll 读取全部输出行直到流结束
func readAll(t *testing.T, ls *LineSource) []string {
	t.Helper()
	var lines []string
	for {
		line, err := ls.Next()
		if errors.Is(err, io.EOF) {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestSupervisorMergedOutput(t *testing.T) {
	script := writeScript(t, `printf 'line1\n'
printf 'line2\r\n'
echo err 1>&2
printf 'bad\377x\n'
printf 'tail'
exit 3`)

	for _, usePTY := range []bool{false, true} {
		name := "pipe"
		if usePTY {
			name = "pty"
		}
		t.Run(name, func(t *testing.T) {
			sup, err := NewSupervisorWithOptions(WithPTY(usePTY))
			require.NoError(t, err)

			h, err := sup.Start([]string{script}, "")
			require.NoError(t, err)
			assert.Greater(t, h.PID(), 0)
			assert.Same(t, h, sup.Active())

			lines := readAll(t, h.Lines())
			assert.Equal(t, []string{"line1", "line2", "err", "bad\uFFFDx", "tail"}, lines)

			code, err := sup.Wait(h)
			require.NoError(t, err)
			assert.Equal(t, 3, code)
			assert.True(t, h.Exited())
			assert.Nil(t, sup.Active())

			// Wait结果被缓存
			code, err = sup.Wait(h)
			require.NoError(t, err)
			assert.Equal(t, 3, code)

			// 流结束后继续读取仍返回EOF
			_, err = h.Lines().Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestSupervisorAlreadyRunning(t *testing.T) {
	script := writeScript(t, "exec sleep 30")

	sup, err := NewSupervisorWithOptions(WithPTY(false))
	require.NoError(t, err)

	h, err := sup.Start([]string{script}, "")
	require.NoError(t, err)

	_, err = sup.Start([]string{script}, "")
	assert.ErrorIs(t, err, core.ErrAlreadyRunning)

	require.NoError(t, sup.Stop(h))
	require.NoError(t, sup.Stop(h))
	assert.True(t, h.StopRequested())

	_, err = sup.Wait(h)
	require.NoError(t, err)
	readAll(t, h.Lines())

	// 上一个进程回收后可以再次启动
	h2, err := sup.Start([]string{script}, "")
	require.NoError(t, err)
	require.NoError(t, sup.Stop(h2))
	sup.Wait(h2)
	h2.Lines().Close()
}

func TestSupervisorStopEscalatesToKill(t *testing.T) {
	script := writeScript(t, `trap '' TERM
echo ready
while true; do sleep 0.05; done`)

	sup, err := NewSupervisorWithOptions(WithPTY(false), WithStopGrace(100*time.Millisecond))
	require.NoError(t, err)

	h, err := sup.Start([]string{script}, "")
	require.NoError(t, err)

	line, err := h.Lines().Next()
	require.NoError(t, err)
	assert.Equal(t, "ready", line)

	require.NoError(t, sup.Stop(h))

	done := make(chan int, 1)
	go func() {
		code, _ := sup.Wait(h)
		done <- code
	}()

	select {
	case code := <-done:
		// 被SIGKILL结束
		assert.Equal(t, -1, code)
	case <-time.After(5 * time.Second):
		t.Fatal("进程没有在等待时间后被强制结束")
	}
	h.Lines().Close()
}

func TestSupervisorStopAfterExit(t *testing.T) {
	script := writeScript(t, "exit 0")

	sup, err := NewSupervisorWithOptions(WithPTY(false))
	require.NoError(t, err)
	h, err := sup.Start([]string{script}, "")
	require.NoError(t, err)

	readAll(t, h.Lines())
	code, err := sup.Wait(h)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.NoError(t, sup.Stop(h))
	assert.NoError(t, sup.Stop(nil))
}

func TestSupervisorStartErrors(t *testing.T) {
	sup, err := NewSupervisor(nil)
	require.NoError(t, err)

	_, err = sup.Start(nil, "")
	assert.ErrorIs(t, err, core.ErrConfigValidation)

	_, err = sup.Start([]string{"/nonexistent/dir/iperf3"}, "")
	assert.ErrorIs(t, err, core.ErrExecutableMissing)
	assert.Nil(t, sup.Active())
}

func TestSupervisorLaunchFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("依赖Unix文件权限")
	}
	path := filepath.Join(t.TempDir(), "not-executable")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	sup, err := NewSupervisorWithOptions(WithPTY(false))
	require.NoError(t, err)

	_, err = sup.Start([]string{path}, "")
	assert.ErrorIs(t, err, core.ErrLaunchFailure)
	assert.Equal(t, core.KindLaunchFailure, core.KindOf(err))
	assert.Nil(t, sup.Active())
}

func TestGetSystemInfo(t *testing.T) {
	osName, mode := GetSystemInfo(false)
	assert.NotEmpty(t, osName)
	assert.Equal(t, "管道 (Pipe)", mode)
}

func TestSupervisorWorkDir(t *testing.T) {
	script := writeScript(t, "pwd")
	scriptDir, err := filepath.EvalSymlinks(filepath.Dir(script))
	require.NoError(t, err)
	other, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	cases := []struct {
		name      string
		configDir string
		workDir   string
		want      string
	}{
		{"executable dir", "", "", scriptDir},
		{"config", other, "", other},
		{"argument", scriptDir, other, other},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sup, err := NewSupervisorWithOptions(WithPTY(false), WithWorkDir(c.configDir))
			require.NoError(t, err)

			h, err := sup.Start([]string{script}, c.workDir)
			require.NoError(t, err)
			lines := readAll(t, h.Lines())
			_, err = sup.Wait(h)
			require.NoError(t, err)

			require.Len(t, lines, 1)
			got, err := filepath.EvalSymlinks(lines[0])
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}
