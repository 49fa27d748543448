package split

// ChunkParams are the Chunk Driver's inputs (spec.md §4.5).
type ChunkParams struct {
	// StartTS is the chunk's start timestamp; 0 means "from the first
	// record".
	StartTS uint64

	// EndTS is the chunk's end timestamp; 0 means open-ended.
	EndTS uint64

	Predicate Predicate

	// PerCPU selects per-CPU routing mode (spec.md §4.5, "Record
	// routing modes"). Forced true when Predicate.RequiresPerCPU().
	PerCPU bool

	// CPUFilter, when HasCPUFilter is true, restricts processing to
	// a single CPU (implemented as per-CPU mode restricted to that
	// CPU).
	CPUFilter    int
	HasCPUFilter bool

	// OutDir and OutBase name the temp files created per CPU:
	// "<OutDir>/.tmp.<OutBase>.<cpu>".
	OutDir  string
	OutBase string
}

// ChunkResult is what running the Chunk Driver to completion reports
// back to the Repeat Controller.
type ChunkResult struct {
	// NextStartTS seeds the next repeated chunk's StartTS; 0 means
	// there is nothing left to split.
	NextStartTS uint64

	// RecordsWritten is the total number of records appended across
	// all CPUs in this chunk.
	RecordsWritten uint64

	// PagesFlushed is the total number of pages flushed across all
	// CPUs in this chunk.
	PagesFlushed uint64

	// TempFiles lists, per CPU index, the temp file path written for
	// that CPU. Every CPU the input reports has an entry; a CPU that
	// received no records has an empty file.
	TempFiles map[int]string
}
