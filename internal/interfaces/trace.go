// Package interfaces holds the trace container contract shared by
// internal/container (the implementation) and internal/page,
// internal/split (the consumers). It is split out from both, in the
// manner of the teacher's own internal/interfaces package, to avoid a
// circular import: split needs the interfaces to accept a container,
// and container needs nothing from split, but a container
// implementation's methods must be typed against the exact interface
// parameter types, so the interfaces can't live in either consuming
// or implementing package alone.
package interfaces

// Record is an immutable view of one ring-buffer record as read from
// an input trace (spec.md §3).
type Record struct {
	// Timestamp is the record's absolute 64-bit timestamp.
	Timestamp uint64

	// Payload is the record's un-padded event bytes.
	Payload []byte

	// PayloadLen is len(Payload); kept as a distinct field so callers
	// that only need the size don't have to hold the slice alive.
	PayloadLen uint16

	// RecordSize is the on-disk framed size (header + optional length
	// word + payload padded to a 4-byte multiple).
	RecordSize uint16

	// Offset is the record's position within its CPU's stream (a
	// monotonically increasing cursor handle, not necessarily a raw
	// byte offset), used to re-read a known position or its
	// successor.
	Offset uint64

	// MissedEvents is the number of events the kernel dropped
	// immediately before this record; zero if none were dropped.
	MissedEvents uint64
}

// FileState enumerates the layouts a container can declare itself as.
// The driver rejects CPULatency: its record stream uses a different
// field layout this module doesn't re-encode.
type FileState int

const (
	FileStateNormal FileState = iota
	FileStateCPULatency
)

// InputTrace is the adapter the Chunk Driver reads records through
// (spec.md §6, "Trace container — input side").
type InputTrace interface {
	CPUCount() int
	PageSize() int
	LongSize() int
	BigEndian() bool
	ClockName() string
	FileState() FileState

	// SeekCPUToTimestamp positions cpu's cursor at the first record
	// with Timestamp >= ts. Passing ts == 0 is a no-op seek to the
	// start of the stream.
	SeekCPUToTimestamp(cpu int, ts uint64) error

	// ReadNextRecord returns the next record in global timestamp
	// order across all CPUs, and which CPU produced it. It reports
	// ok == false at end of input.
	ReadNextRecord() (rec Record, cpu int, ok bool, err error)

	// ReadCPURecord returns the next record on cpu's own stream,
	// ignoring other CPUs. It reports ok == false when that CPU's
	// stream is exhausted.
	ReadCPURecord(cpu int) (rec Record, ok bool, err error)

	// ReadAtOffset reads the record at the given per-CPU cursor
	// position (a Record.Offset value), reporting ok == false if no
	// record exists there. Used by the Chunk Driver to compute
	// next_start_ts by re-reading the last record it wrote to a CPU
	// and taking ts+1.
	ReadAtOffset(cpu int, offset uint64) (rec Record, ok bool, err error)
}

// OutputTrace is the adapter the Repeat Controller hands finished
// chunks to (spec.md §6, "Trace container — output side").
type OutputTrace interface {
	CopyHeaderFrom(in InputTrace) error
	SetOutClock(name string) error
	AppendCPUData(cpuFiles []string) error
	Close() error
}
