package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineSource 把子进程的合并输出拆分为文本行
// 非法UTF-8字节替换为U+FFFD，行尾的\r\n被去除
type LineSource struct {
	rc     io.ReadCloser
	reader *bufio.Reader
	pty    bool

	err       error // 终止错误，之后的Next直接返回
	closeOnce sync.Once
}

// NewLineSource 基于读取端创建行源
// pty为true时，读到EIO视为流结束
func NewLineSource(rc io.ReadCloser, pty bool) *LineSource {
	decoded := transform.NewReader(rc, unicode.UTF8.NewDecoder())
	return &LineSource{
		rc:     rc,
		reader: bufio.NewReader(decoded),
		pty:    pty,
	}
}

// Next 返回下一行
// 输出耗尽后返回io.EOF；其他读取错误包装为core.ErrStreamIO
func (l *LineSource) Next() (string, error) {
	if l.err != nil {
		return "", l.err
	}

	line, err := l.reader.ReadString('\n')
	if err == nil {
		return trimLineEnd(line), nil
	}

	l.err = l.classify(err)
	l.Close()

	// 最后一行没有换行符，终止错误留给下一次调用
	if line != "" {
		return trimLineEnd(line), nil
	}
	return "", l.err
}

// Close 关闭读取端，可重复调用
func (l *LineSource) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.rc.Close()
	})
	return err
}

// classify 区分正常结束与读取错误
func (l *LineSource) classify(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if l.pty && isPTYClosed(err) {
		return io.EOF
	}
	return fmt.Errorf("%w: %v", core.ErrStreamIO, err)
}

func trimLineEnd(line string) string {
	return strings.TrimRight(line, "\r\n")
}
