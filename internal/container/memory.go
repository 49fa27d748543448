package container

import (
	"sort"

	"github.com/behrlich/tracesplit/internal/interfaces"
)

// Memory is an in-memory InputTrace/OutputTrace double, synthesized
// from per-CPU record slices. Tests use it to fabricate the end-to-end
// scenarios exactly as described (N CPUs × records, missed-event
// injection) without touching the filesystem, and the file-backed
// Reader serves its reads through one after decoding a file, in the
// spirit of the teacher's backend/mem.go RAM-backed Backend.
type Memory struct {
	pageSize  int
	longSize  int
	bigEndian bool
	clockName string
	fileState int

	cpuRecords [][]Record

	// cursors tracks each CPU's next-read index for ReadCPURecord and
	// the shared global cursor used by ReadNextRecord.
	cursors      []int
	globalCursor []int // per-CPU position for the global merge iterator
}

// NewMemory builds a Memory fixture with cpuCount CPUs, each holding
// the given records (already in timestamp order per CPU, matching a
// real ring-buffer's per-CPU monotonic ordering). Record.Offset is set
// to each record's index within its own CPU's slice, so
// Reader/Driver code can treat it as an opaque per-CPU cursor handle.
func NewMemory(pageSize, longSize int, bigEndian bool, clockName string, perCPU [][]Record) *Memory {
	cpuRecords := make([][]Record, len(perCPU))
	for c, recs := range perCPU {
		cpuRecords[c] = make([]Record, len(recs))
		for i, r := range recs {
			r.Offset = uint64(i)
			cpuRecords[c][i] = r
		}
	}

	return &Memory{
		pageSize:     pageSize,
		longSize:     longSize,
		bigEndian:    bigEndian,
		clockName:    clockName,
		cpuRecords:   cpuRecords,
		cursors:      make([]int, len(cpuRecords)),
		globalCursor: make([]int, len(cpuRecords)),
	}
}

func (m *Memory) CPUCount() int    { return len(m.cpuRecords) }
func (m *Memory) PageSize() int    { return m.pageSize }
func (m *Memory) LongSize() int    { return m.longSize }
func (m *Memory) BigEndian() bool  { return m.bigEndian }
func (m *Memory) ClockName() string { return m.clockName }

// FileState reports the synthesized state set by SetFileState, or
// FileStateNormal by default.
func (m *Memory) FileState() interfaces.FileState {
	return interfaces.FileState(m.fileState)
}

// SetFileState lets a test mark this fixture as a latency-format
// capture, to exercise the Chunk Driver's BadInput rejection path.
func (m *Memory) SetFileState(s interfaces.FileState) {
	m.fileState = int(s)
}

// SeekCPUToTimestamp positions both the per-CPU and global-merge
// cursors for cpu at the first record with Timestamp >= ts.
func (m *Memory) SeekCPUToTimestamp(cpu int, ts uint64) error {
	if cpu < 0 || cpu >= len(m.cpuRecords) {
		return nil
	}
	recs := m.cpuRecords[cpu]
	idx := sort.Search(len(recs), func(i int) bool { return recs[i].Timestamp >= ts })
	m.cursors[cpu] = idx
	m.globalCursor[cpu] = idx
	return nil
}

// ReadNextRecord returns the next record in global timestamp order,
// advancing whichever CPU's cursor produced it.
func (m *Memory) ReadNextRecord() (Record, int, bool, error) {
	bestCPU := -1
	var best Record
	for c, recs := range m.cpuRecords {
		idx := m.globalCursor[c]
		if idx >= len(recs) {
			continue
		}
		if bestCPU == -1 || recs[idx].Timestamp < best.Timestamp {
			bestCPU = c
			best = recs[idx]
		}
	}
	if bestCPU == -1 {
		return Record{}, 0, false, nil
	}
	m.globalCursor[bestCPU]++
	return best, bestCPU, true, nil
}

// ReadCPURecord returns the next record on cpu's own stream.
func (m *Memory) ReadCPURecord(cpu int) (Record, bool, error) {
	if cpu < 0 || cpu >= len(m.cpuRecords) {
		return Record{}, false, nil
	}
	idx := m.cursors[cpu]
	recs := m.cpuRecords[cpu]
	if idx >= len(recs) {
		return Record{}, false, nil
	}
	m.cursors[cpu] = idx + 1
	return recs[idx], true, nil
}

// ReadAtOffset reads the record at the given index within cpu's
// stream, reporting ok == false if the index is out of range.
func (m *Memory) ReadAtOffset(cpu int, offset uint64) (Record, bool, error) {
	if cpu < 0 || cpu >= len(m.cpuRecords) {
		return Record{}, false, nil
	}
	recs := m.cpuRecords[cpu]
	if offset >= uint64(len(recs)) {
		return Record{}, false, nil
	}
	return recs[offset], true, nil
}

// CopyHeaderFrom, SetOutClock, AppendCPUData, and Close implement the
// OutputTrace side trivially: a Memory fixture is read-only test
// input, never itself a split destination.
func (m *Memory) CopyHeaderFrom(_ interfaces.InputTrace) error { return nil }
func (m *Memory) SetOutClock(name string) error                { m.clockName = name; return nil }
func (m *Memory) AppendCPUData(_ []string) error                { return nil }
func (m *Memory) Close() error                                  { return nil }

var (
	_ interfaces.InputTrace  = (*Memory)(nil)
	_ interfaces.OutputTrace = (*Memory)(nil)
)
