package logstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(s *Store, n int) {
	for i := 0; i < n; i++ {
		s.Append(fmt.Sprintf("line %d", i+1))
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultMaxLines, s.Cap())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.LastSeq())
	assert.Equal(t, uint64(0), s.OldestSeq())
	assert.Nil(t, s.Read(1))
}

func TestAppendAssignsSequence(t *testing.T) {
	s := New(10)
	for i := 1; i <= 5; i++ {
		line := s.Append(fmt.Sprintf("l%d", i))
		assert.Equal(t, uint64(i), line.Seq)
		assert.False(t, line.Time.IsZero())
	}

	lines := s.Read(1)
	require.Len(t, lines, 5)
	for i, l := range lines {
		assert.Equal(t, uint64(i+1), l.Seq)
		assert.Equal(t, fmt.Sprintf("l%d", i+1), l.Text)
	}
}

func TestEvictionFIFO(t *testing.T) {
	s := New(5)
	appendN(s, 12)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, uint64(8), s.OldestSeq())
	assert.Equal(t, uint64(12), s.LastSeq())

	all := s.All()
	require.Len(t, all, 5)
	assert.Equal(t, "line 8", all[0].Text)
	assert.Equal(t, "line 12", all[4].Text)
}

func TestReadFromEvictedCursorResumesAtOldest(t *testing.T) {
	s := New(3)
	appendN(s, 10)

	lines := s.Read(2)
	require.Len(t, lines, 3)
	assert.Equal(t, uint64(8), lines[0].Seq)

	assert.Nil(t, s.Read(11))
	assert.Len(t, s.Read(10), 1)
}

func TestReadN(t *testing.T) {
	s := New(100)
	appendN(s, 10)

	lines := s.ReadN(3, 4)
	require.Len(t, lines, 4)
	assert.Equal(t, uint64(3), lines[0].Seq)
	assert.Equal(t, uint64(6), lines[3].Seq)

	assert.Len(t, s.ReadN(8, 100), 3)
}

func TestLastAndReplayCursor(t *testing.T) {
	s := New(100)
	assert.Equal(t, uint64(0), s.ReplayCursor(50))

	appendN(s, 20)

	last := s.Last(5)
	require.Len(t, last, 5)
	assert.Equal(t, uint64(16), last[0].Seq)
	assert.Len(t, s.Last(500), 20)
	assert.Nil(t, s.Last(0))

	// 从回放游标读取恰好得到最近n行
	cur := s.ReplayCursor(5)
	assert.Equal(t, uint64(15), cur)
	assert.Equal(t, last, s.Read(cur+1))

	assert.Equal(t, uint64(0), s.ReplayCursor(50))
	assert.Equal(t, uint64(20), s.ReplayCursor(0))
}

func TestClearKeepsSequence(t *testing.T) {
	s := New(10)
	appendN(s, 4)
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(4), s.LastSeq())
	assert.Nil(t, s.Read(1))

	line := s.Append("after clear")
	assert.Equal(t, uint64(5), line.Seq)
	lines := s.Read(1)
	require.Len(t, lines, 1)
	assert.Equal(t, "after clear", lines[0].Text)
}

func TestReadsReturnCopies(t *testing.T) {
	s := New(10)
	appendN(s, 3)

	lines := s.All()
	lines[0].Text = "mutated"
	assert.Equal(t, "line 1", s.All()[0].Text)
}

// 并发读取期间序列号在未淘汰窗口内严格递增且无间隙
func TestConcurrentReadersSeeGapFreeWindow(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				lines := s.Read(1)
				for i := 1; i < len(lines); i++ {
					if lines[i].Seq != lines[i-1].Seq+1 {
						t.Errorf("gap between %d and %d", lines[i-1].Seq, lines[i].Seq)
						return
					}
				}
			}
		}()
	}

	appendN(s, 2000)
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(2000), s.LastSeq())
	assert.Equal(t, 50, s.Len())
}

func TestReadSince(t *testing.T) {
	s := New(5)
	appendN(s, 8) // 保留 4..8

	lines, last := s.ReadSince(0, 2)
	require.Len(t, lines, 2)
	assert.Equal(t, uint64(4), lines[0].Seq)
	assert.Equal(t, uint64(8), last)

	lines, last = s.ReadSince(6, 0)
	require.Len(t, lines, 2)
	assert.Equal(t, uint64(7), lines[0].Seq)
	assert.Equal(t, uint64(8), last)

	lines, _ = s.ReadSince(8, 0)
	assert.Empty(t, lines)

	s.Clear()
	lines, last = s.ReadSince(2, 0)
	assert.Empty(t, lines)
	assert.Equal(t, uint64(8), last)
}
