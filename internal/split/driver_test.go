package split

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/tracesplit/internal/constants"
	"github.com/behrlich/tracesplit/internal/container"
	"github.com/behrlich/tracesplit/internal/wire"
)

func rec(ts uint64, missed uint64) container.Record {
	payload := []byte{1, 2, 3, 4}
	return container.Record{
		Timestamp:    ts,
		Payload:      payload,
		PayloadLen:   uint16(len(payload)),
		RecordSize:   8,
		MissedEvents: missed,
	}
}

// threeCPUFixture builds the §8 scenario 1/2/3 input: 3 CPUs, 10
// records each, timestamps 100..190 step 10 per CPU.
func threeCPUFixture() *container.Memory {
	perCPU := make([][]container.Record, 3)
	for c := 0; c < 3; c++ {
		recs := make([]container.Record, 10)
		for i := 0; i < 10; i++ {
			recs[i] = rec(uint64(100+i*10), 0)
		}
		perCPU[c] = recs
	}
	return container.NewMemory(constants.DefaultPageSize, 8, false, "local", perCPU)
}

func readBackPage(t *testing.T, path string, index int) (commit uint32, recordStreamStart int) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pageStart := index * constants.DefaultPageSize
	require.GreaterOrEqual(t, len(data), pageStart+constants.DefaultPageSize)
	order := wire.NewOrder(false)
	commit = order.U32(data[pageStart+8 : pageStart+12])
	return commit, pageStart + 16
}

func TestChunkDriverIdentity(t *testing.T) {
	mem := threeCPUFixture()
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		StartTS: 0,
		EndTS:   0,
		Predicate: Predicate{Kind: PredicateNone},
		OutDir:    dir,
		OutBase:   "trace",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 30, result.RecordsWritten)
	assert.Len(t, result.TempFiles, 3)

	for cpu, path := range result.TempFiles {
		commit, _ := readBackPage(t, path, 0)
		assert.Zero(t, commit&(constants.MissingEvents|constants.MissingStored),
			"cpu %d must have no MISSING_* flags", cpu)
	}
}

func TestChunkDriverTimeWindow(t *testing.T) {
	mem := threeCPUFixture()
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		StartTS:   120,
		EndTS:     170,
		Predicate: Predicate{Kind: PredicateNone},
		OutDir:    dir,
		OutBase:   "trace",
	})
	require.NoError(t, err)

	// ts in [120, 170] step 10 per CPU = 6 records (120,130,...,170) * 3 CPUs
	assert.EqualValues(t, 18, result.RecordsWritten)
}

func TestChunkDriverDurationPredicate(t *testing.T) {
	mem := threeCPUFixture()
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		StartTS:   100,
		Predicate: Predicate{Kind: PredicateMicros, N: 50},
		OutDir:    dir,
		OutBase:   "trace",
	})
	require.NoError(t, err)

	// window is [100, 100+50000] ns; all fixture timestamps (100..190)
	// fall inside it, so every record should still be written.
	assert.EqualValues(t, 30, result.RecordsWritten)
}

func TestChunkDriverEventCountPredicateSingleChunk(t *testing.T) {
	perCPU := [][]container.Record{make([]container.Record, 0)}
	for i := 0; i < 30; i++ {
		perCPU[0] = append(perCPU[0], rec(uint64(100+i*10), 0))
	}
	mem := container.NewMemory(constants.DefaultPageSize, 8, false, "local", perCPU)
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		StartTS:   0,
		Predicate: Predicate{Kind: PredicateEvents, N: 10},
		OutDir:    dir,
		OutBase:   "trace",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 10, result.RecordsWritten)
	assert.NotZero(t, result.NextStartTS)
}

func TestChunkDriverMissedEvents(t *testing.T) {
	perCPU := make([][]container.Record, 2)
	cpu1 := make([]container.Record, 10)
	for i := 0; i < 10; i++ {
		missed := uint64(0)
		if i == 4 {
			missed = 7
		}
		cpu1[i] = rec(uint64(100+i*10), missed)
	}
	perCPU[0] = cpu1
	perCPU[1] = []container.Record{rec(100, 0)}

	mem := container.NewMemory(constants.DefaultPageSize, 8, false, "local", perCPU)
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		StartTS:   0,
		Predicate: Predicate{Kind: PredicateNone},
		OutDir:    dir,
		OutBase:   "trace",
	})
	require.NoError(t, err)
	require.Contains(t, result.TempFiles, 0)

	commit, recordStreamStart := readBackPage(t, result.TempFiles[0], 1)
	assert.NotZero(t, commit&constants.MissingEvents)
	assert.NotZero(t, commit&constants.MissingStored)

	data, err := os.ReadFile(result.TempFiles[0])
	require.NoError(t, err)
	payloadBytes := commit & 0x3fffffff
	countOffset := recordStreamStart + int(payloadBytes)
	order := wire.NewOrder(false)
	count := order.U64(data[countOffset : countOffset+8])
	assert.EqualValues(t, 7, count)
}

// TestChunkDriverCPUFilterForcesPerCPU exercises a CPU filter given
// without the explicit per-CPU flag: the filtered CPU's own stream,
// not a merge across every CPU, must seed start_ts and the duration
// predicate's window (trace-split.c parse_file calls parse_cpu with
// percpu=1 whenever only_cpu is set).
//
// CPU 1 (filtered out) holds one record far earlier than CPU 0
// (selected): if the driver wrongly ran global ordering, the very
// first record pulled would be CPU 1's ts=0, seeding start_ts=0 and
// making the duration predicate fire one record early.
func TestChunkDriverCPUFilterForcesPerCPU(t *testing.T) {
	cpu0 := make([]container.Record, 10)
	for i := range cpu0 {
		cpu0[i] = rec(uint64(100_000*(i+1)), 0)
	}
	perCPU := [][]container.Record{cpu0, {rec(0, 0)}}
	mem := container.NewMemory(constants.DefaultPageSize, 8, false, "local", perCPU)
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	result, err := drv.Run(ChunkParams{
		Predicate:    Predicate{Kind: PredicateMicros, N: 100},
		HasCPUFilter: true,
		CPUFilter:    0,
		OutDir:       dir,
		OutBase:      "trace",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 2, result.RecordsWritten,
		"start_ts must be seeded from cpu 0's own first record (100000), not cpu 1's (0)")
}

func TestChunkDriverRejectsCPULatency(t *testing.T) {
	mem := threeCPUFixture()
	mem.SetFileState(FileStateCPULatency)
	dir := t.TempDir()

	drv := NewDriver(mem, nil)
	_, err := drv.Run(ChunkParams{OutDir: dir, OutBase: "trace"})
	assert.Error(t, err)
}
