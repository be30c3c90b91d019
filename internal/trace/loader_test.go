package trace_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jitterbench/jitterbench/internal/trace"
	"github.com/stretchr/testify/require"
)

func writeTraceFile(t *testing.T, records [][5]uint64, flags []uint8) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "trace.bin")

	buf := make([]byte, 0, len(records)*trace.RecordSize)
	for i, r := range records {
		var rec [trace.RecordSize]byte
		binary.LittleEndian.PutUint32(rec[0:4], uint32(r[0]))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(r[1]))
		binary.LittleEndian.PutUint16(rec[8:10], uint16(r[2]))
		binary.LittleEndian.PutUint16(rec[10:12], uint16(r[3]))
		rec[12] = byte(r[4])
		binary.LittleEndian.PutUint64(rec[13:21], floatBitsFromSeconds(float64(i)))
		rec[21] = flags[i]
		buf = append(buf, rec[:]...)
	}

	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func floatBitsFromSeconds(s float64) uint64 {
	return math.Float64bits(s)
}

func TestLoad_DecodesRecords(t *testing.T) {
	records := [][5]uint64{
		{1, 2, 80, 443, 6},
		{3, 4, 22, 22, 17},
	}
	path := writeTraceFile(t, records, []uint8{0, 1})

	got, err := trace.Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint8(0), got[0].Flag)
	require.Equal(t, uint8(1), got[1].Flag)
}

func TestLoad_TruncatedFinalRecordDropped(t *testing.T) {
	records := [][5]uint64{
		{1, 2, 80, 443, 6},
		{3, 4, 22, 22, 17},
	}
	path := writeTraceFile(t, records, []uint8{0, 1})

	// Truncate the file mid-way through the last record.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-5], 0o600))

	got, err := trace.Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestLoad_UnreadableFileYieldsEmptyNonError(t *testing.T) {
	got, err := trace.Load(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoad_ShuffleIsDeterministicAcrossRuns(t *testing.T) {
	records := make([][5]uint64, 30)
	flags := make([]uint8, 30)
	for i := range records {
		records[i] = [5]uint64{uint64(i), uint64(i + 1), uint64(i % 65535), uint64((i + 1) % 65535), 6}
	}
	path := writeTraceFile(t, records, flags)

	first, err := trace.Load(path)
	require.NoError(t, err)
	second, err := trace.Load(path)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.True(t, first[i].Key.Equal(second[i].Key))
	}
}

func TestLoad_EmptyFileYieldsEmptyRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	got, err := trace.Load(path)
	require.NoError(t, err)
	require.Empty(t, got)
}
