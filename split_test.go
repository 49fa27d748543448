package tracesplit

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/tracesplit/internal/container"
	"github.com/behrlich/tracesplit/internal/split"
)

// openOutput adapts container.Create to the OutputOpener signature.
func openOutput(path string) (split.OutputTrace, error) {
	return container.Create(path)
}

// threeCPUFixture builds the §8 scenario 1/2/3 input: 3 CPUs, 10
// records each, timestamps 100..190 step 10 per CPU.
func threeCPUFixture() *container.Memory {
	recs := make([]MockRecord, 10)
	for i := range recs {
		recs[i] = MockRecord{Timestamp: uint64(100 + i*10), Payload: []byte{1, 2, 3, 4}}
	}
	return NewMockInputTrace(MockInputTraceOptions{CPUs: [][]MockRecord{recs, recs, recs}})
}

func TestRepeatSplitIdentity(t *testing.T) {
	in := threeCPUFixture()
	outPath := filepath.Join(t.TempDir(), "out.dat")

	params := DefaultSplitParams(in, openOutput, outPath)
	metrics, err := RepeatSplit(params)
	require.NoError(t, err)
	assert.EqualValues(t, 30, metrics.Snapshot().RecordsWritten)

	out, err := container.Open(outPath)
	require.NoError(t, err)
	defer out.Close()

	require.Equal(t, 3, out.CPUCount())
	for cpu := 0; cpu < 3; cpu++ {
		for i := 0; i < 10; i++ {
			rec, ok, err := out.ReadAtOffset(cpu, uint64(i))
			require.NoError(t, err)
			require.True(t, ok, "cpu %d record %d", cpu, i)
			assert.EqualValues(t, 100+i*10, rec.Timestamp)
			assert.Zero(t, rec.MissedEvents)
		}
		_, ok, err := out.ReadAtOffset(cpu, 10)
		require.NoError(t, err)
		assert.False(t, ok, "cpu %d must have exactly 10 records", cpu)
	}
}

func TestRepeatSplitTimeWindow(t *testing.T) {
	in := threeCPUFixture()
	outPath := filepath.Join(t.TempDir(), "out.dat")

	params := DefaultSplitParams(in, openOutput, outPath)
	params.StartTS = 120
	params.EndTS = 170

	metrics, err := RepeatSplit(params)
	require.NoError(t, err)
	// ts in [120, 170] step 10 per CPU = 6 records (120..170) * 3 CPUs
	assert.EqualValues(t, 18, metrics.Snapshot().RecordsWritten)

	out, err := container.Open(outPath)
	require.NoError(t, err)
	defer out.Close()

	rec, ok, err := out.ReadAtOffset(0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 120, rec.Timestamp)
}

func TestRepeatSplitEventCountRepeats(t *testing.T) {
	recs := make([]MockRecord, 30)
	for i := range recs {
		recs[i] = MockRecord{Timestamp: uint64(100 + i*10), Payload: []byte{1, 2, 3, 4}}
	}
	in := NewMockInputTrace(MockInputTraceOptions{CPUs: [][]MockRecord{recs}})
	outPath := filepath.Join(t.TempDir(), "trace.dat")

	params := DefaultSplitParams(in, openOutput, outPath)
	params.Predicate = split.Predicate{Kind: split.PredicateEvents, N: 10}
	params.Repeat = true

	metrics, err := RepeatSplit(params)
	require.NoError(t, err)
	snap := metrics.Snapshot()
	assert.EqualValues(t, 3, snap.ChunksWritten)
	assert.EqualValues(t, 30, snap.RecordsWritten)

	for i := 1; i <= 3; i++ {
		chunkPath := fmt.Sprintf("%s.%04d", outPath, i)
		out, err := container.Open(chunkPath)
		require.NoError(t, err, "chunk %d", i)
		rec, ok, err := out.ReadAtOffset(0, 9)
		require.NoError(t, err)
		require.True(t, ok, "chunk %d must hold exactly 10 records", i)
		_, ok, err = out.ReadAtOffset(0, 10)
		require.NoError(t, err)
		assert.False(t, ok, "chunk %d must hold exactly 10 records", i)
		_ = rec
		out.Close()
	}
}

// fivePageFixture builds per-CPU input that exactly fills 5 pages of
// 4 records each (4096-byte pages, 8-byte longs, 1000-byte payloads:
// 4 header + 4 explicit length + 1000 payload = 1008 bytes/record,
// 4 records = 4032 bytes fitting in the 4080-byte record area; a 5th
// would overflow it).
func fivePageFixture(cpus int) *container.Memory {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	perCPU := make([][]MockRecord, cpus)
	for c := 0; c < cpus; c++ {
		recs := make([]MockRecord, 20)
		for i := range recs {
			recs[i] = MockRecord{Timestamp: uint64(1000 + i*10), Payload: payload}
		}
		perCPU[c] = recs
	}
	return NewMockInputTrace(MockInputTraceOptions{CPUs: perCPU})
}

func TestRepeatSplitPagePredicatePerCPURepeats(t *testing.T) {
	in := fivePageFixture(2)
	outPath := filepath.Join(t.TempDir(), "trace.dat")

	params := DefaultSplitParams(in, openOutput, outPath)
	params.Predicate = split.Predicate{Kind: split.PredicatePages, N: 2}
	params.PerCPU = true
	params.Repeat = true

	metrics, err := RepeatSplit(params)
	require.NoError(t, err)
	snap := metrics.Snapshot()

	// 5 pages/cpu at <=2 pages/chunk takes 3 chunks (2, 2, 1).
	assert.EqualValues(t, 3, snap.ChunksWritten)
	assert.EqualValues(t, 5*2, snap.PagesFlushed)
	assert.EqualValues(t, 20*2, snap.RecordsWritten)

	expectedRecordsPerChunk := []int{8, 8, 4}
	for i, want := range expectedRecordsPerChunk {
		chunkPath := fmt.Sprintf("%s.%04d", outPath, i+1)
		out, err := container.Open(chunkPath)
		require.NoError(t, err, "chunk %d", i+1)
		for cpu := 0; cpu < 2; cpu++ {
			_, ok, err := out.ReadAtOffset(cpu, uint64(want-1))
			require.NoError(t, err)
			assert.True(t, ok, "chunk %d cpu %d should hold %d records", i+1, cpu, want)
			_, ok, err = out.ReadAtOffset(cpu, uint64(want))
			require.NoError(t, err)
			assert.False(t, ok, "chunk %d cpu %d should hold exactly %d records", i+1, cpu, want)
		}
		out.Close()
	}
}

func TestRepeatSplitMissedEvents(t *testing.T) {
	recs := make([]MockRecord, 10)
	for i := range recs {
		recs[i] = MockRecord{Timestamp: uint64(100 + i*10), Payload: []byte{1, 2, 3, 4}}
	}
	recs[4].MissedEvents = 7

	in := NewMockInputTrace(MockInputTraceOptions{CPUs: [][]MockRecord{recs}})
	outPath := filepath.Join(t.TempDir(), "out.dat")

	params := DefaultSplitParams(in, openOutput, outPath)
	metrics, err := RepeatSplit(params)
	require.NoError(t, err)
	assert.EqualValues(t, 10, metrics.Snapshot().RecordsWritten)

	out, err := container.Open(outPath)
	require.NoError(t, err)
	defer out.Close()

	rec, ok, err := out.ReadAtOffset(0, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 140, rec.Timestamp)
	assert.EqualValues(t, 7, rec.MissedEvents)
}
