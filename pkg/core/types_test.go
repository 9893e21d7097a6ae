package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestLogLineString 测试日志行的时间戳前缀格式
func TestLogLineString(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	line := LogLine{Seq: 3, Text: "hello", Time: ts}

	expected := "[2024-05-06 07:08:09] hello"
	if line.String() != expected {
		t.Errorf("Expected %q, got %q", expected, line.String())
	}
}

// TestBreakpointSampleString 测试断点记录的文本格式
func TestBreakpointSampleString(t *testing.T) {
	ts := time.Date(2024, 5, 6, 12, 30, 0, 0, time.Local)
	s := BreakpointSample{Seq: 1, ElapsedSeconds: 5.04, BandwidthMbps: 941.5, Time: ts}

	expected := "[12:30:00] T:5.0s BW:941.50 Mbps"
	if s.String() != expected {
		t.Errorf("Expected %q, got %q", expected, s.String())
	}
}

// TestSessionState 测试会话状态的名称与活跃判断
func TestSessionState(t *testing.T) {
	cases := []struct {
		state  SessionState
		name   string
		active bool
	}{
		{StateIdle, "idle", false},
		{StateRunning, "running", true},
		{StateStopping, "stopping", true},
		{StateFinished, "finished", false},
		{StateFailed, "failed", false},
		{SessionState(42), "unknown", false},
	}

	for _, c := range cases {
		if c.state.String() != c.name {
			t.Errorf("Expected name %q, got %q", c.name, c.state.String())
		}
		if c.state.Active() != c.active {
			t.Errorf("State %s: expected Active()=%v", c.name, c.active)
		}
	}

	// 状态在JSON中以名称编码
	data, err := json.Marshal(SessionStatus{State: StateRunning})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"state":"running"`) {
		t.Errorf("Expected state name in JSON, got %s", data)
	}
}

// TestSessionStatusJSON 测试会话状态经JSON编码后可以解码回原值
func TestSessionStatusJSON(t *testing.T) {
	for _, state := range []SessionState{StateIdle, StateRunning, StateStopping, StateFinished, StateFailed} {
		in := SessionStatus{ID: "abc", State: state, ExitCode: 1}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		var out SessionStatus
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", data, err)
		}
		if out.State != state || out.ID != "abc" || out.ExitCode != 1 {
			t.Errorf("Round trip mismatch: %+v -> %+v", in, out)
		}
	}

	var out SessionStatus
	if err := json.Unmarshal([]byte(`{"state":"bogus"}`), &out); err == nil {
		t.Error("Expected error for unknown state name")
	}
}

// TestLogLineJSON 测试日志行的JSON字段名
func TestLogLineJSON(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	data, err := json.Marshal(LogLine{Seq: 4, Text: "hi", Time: ts})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{`"seq":4`, `"text":"hi"`, `"time":"2024-05-06T07:08:09Z"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected %s in %s", key, data)
		}
	}
}

// TestSessionElapsed 测试会话运行时长的计算
func TestSessionElapsed(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)

	var idle SessionStatus
	if idle.Elapsed(time.Now()) != 0 {
		t.Error("Expected zero elapsed for a session that never started")
	}

	running := SessionStatus{State: StateRunning, StartTime: start}
	if e := running.Elapsed(start.Add(4 * time.Second)); e != 4 {
		t.Errorf("Expected 4s elapsed, got %f", e)
	}

	finished := SessionStatus{State: StateFinished, StartTime: start, EndTime: start.Add(7 * time.Second)}
	if e := finished.Elapsed(time.Now()); e != 7 {
		t.Errorf("Expected finished session to report 7s, got %f", e)
	}
}

// TestSessionProgress 测试进度计算
func TestSessionProgress(t *testing.T) {
	start := time.Now()

	unknown := SessionStatus{State: StateRunning, StartTime: start}
	if p := unknown.Progress(start.Add(time.Second)); p != 0 {
		t.Errorf("Expected 0 progress without duration, got %f", p)
	}

	running := SessionStatus{State: StateRunning, StartTime: start, Duration: 10}
	if p := running.Progress(start.Add(5 * time.Second)); p != 0.5 {
		t.Errorf("Expected 0.5 progress, got %f", p)
	}
	if p := running.Progress(start.Add(20 * time.Second)); p != 1 {
		t.Errorf("Expected progress capped at 1, got %f", p)
	}

	finished := SessionStatus{State: StateFinished}
	if finished.Progress(time.Now()) != 1 {
		t.Error("Expected finished session to report full progress")
	}
}

// TestLineEvent 测试日志行事件的包装
func TestLineEvent(t *testing.T) {
	line := LogLine{Seq: 9, Text: "x", Time: time.Now()}
	ev := LineEvent(line)

	if ev.Kind != EventLine || ev.Seq != 9 || ev.Line == nil || ev.Line.Text != "x" {
		t.Errorf("Unexpected line event: %+v", ev)
	}
	if ev.Terminal() {
		t.Error("Line event must not be terminal")
	}
	if !(Event{Kind: EventSessionEnded}).Terminal() {
		t.Error("Session ended event must be terminal")
	}
}

// TestKindOf 测试错误分类，包括被包装过的错误
func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{nil, KindNone},
		{ErrAlreadyRunning, KindAlreadyRunning},
		{fmt.Errorf("持续时间必须为整数: %w", ErrConfigValidation), KindConfigValidation},
		{fmt.Errorf("iperf3: %w", ErrExecutableMissing), KindExecutableMissing},
		{fmt.Errorf("wrap: %w", fmt.Errorf("inner: %w", ErrStreamIO)), KindStreamIO},
		{ErrNoActiveSession, KindNoActiveSession},
		{ErrPrematureExit, KindPrematureExit},
		{ErrLaunchFailure, KindLaunchFailure},
		{ErrDetached, KindDetached},
		{fmt.Errorf("something else"), KindInternal},
	}

	for _, c := range cases {
		if got := KindOf(c.err); got != c.kind {
			t.Errorf("KindOf(%v): expected %q, got %q", c.err, c.kind, got)
		}
	}
}
