package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 5, 1, 9, 8, 7, 0, time.UTC)

func TestWriteLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, []core.LogLine{
		{Seq: 1, Text: "first", Time: ts},
		{Seq: 2, Text: "second", Time: ts},
	}))
	assert.Equal(t, "[2024-05-01 09:08:07] first\n[2024-05-01 09:08:07] second\n", buf.String())
}

func TestWriteSamplesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSamplesCSV(&buf, []core.BreakpointSample{
		{Seq: 1, ElapsedSeconds: 5.04, BandwidthMbps: 941.456, Time: ts},
	}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, samplesHeader, records[0])
	assert.Equal(t, []string{"1", "5.0", "941.46", "2024-05-01T09:08:07Z"}, records[1])
}

func TestWriteSamplesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSamplesText(&buf, []core.BreakpointSample{
		{Seq: 1, ElapsedSeconds: 10, BandwidthMbps: 12.5, Time: ts},
	}))
	assert.Equal(t, "[09:08:07] T:10.0s BW:12.50 Mbps\n", buf.String())
}

func TestSaveFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := SaveLog(dir, []core.LogLine{{Seq: 1, Text: "x", Time: ts}}, ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "iperf_main_090807.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-01 09:08:07] x\n", string(data))

	path, err = SaveSamples(dir, nil, ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "iperf_bp_090807.csv"), path)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sequence,elapsed_seconds,bandwidth_mbps,wall_clock_time\n", string(data))
}
