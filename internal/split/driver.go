package split

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/logging"
	"github.com/behrlich/tracesplit/internal/page"
)

// Driver runs one chunk of the Chunk Driver algorithm (spec.md §4.5)
// against a borrowed InputTrace.
type Driver struct {
	in     InputTrace
	logger *logging.Logger
}

// NewDriver returns a Driver reading from in. A nil logger uses the
// package default.
func NewDriver(in InputTrace, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Driver{in: in, logger: logger}
}

type cpuState struct {
	cpu            int
	file           *os.File
	path           string
	page           *page.Page
	pagesFlushed   uint64
	pageBoundaries uint64 // page-creation events seen, including the very first
}

// Run executes one chunk to completion and returns the temp files it
// produced plus the bookkeeping needed to seed a repeated chunk.
//
// A temp file is created for every CPU the input reports, not just
// the ones this chunk actually routes records to (spec.md §4.5 step
// 1, matching the reference parse_file's unconditional per-CPU
// cpu_data array): the container writer needs a section, even an
// empty one, for every CPU's index entry.
func (d *Driver) Run(params ChunkParams) (ChunkResult, error) {
	if d.in.FileState() == FileStateCPULatency {
		return ChunkResult{}, fmt.Errorf("split: input is a CPU_LATENCY capture, which this module does not re-encode")
	}

	if params.Predicate.RequiresPerCPU() && !params.PerCPU {
		params.PerCPU = true
	}
	// A single-CPU filter always forces per-CPU routing (trace-split.c
	// parse_file calls parse_cpu(percpu=1, ...) whenever only_cpu is
	// set), so start_ts/window/predicate evaluation is seeded from the
	// filtered CPU's own stream rather than a merge across every CPU.
	if params.HasCPUFilter {
		params.PerCPU = true
	}

	cpuCount := d.in.CPUCount()
	pageSize := d.in.PageSize()
	longSize := d.in.LongSize()
	order := wireOrder(d.in)

	active := make([]bool, cpuCount)
	if params.HasCPUFilter {
		if params.CPUFilter >= 0 && params.CPUFilter < cpuCount {
			active[params.CPUFilter] = true
		}
	} else {
		for c := range active {
			active[c] = true
		}
	}

	states := make(map[int]*cpuState, cpuCount)
	for c := 0; c < cpuCount; c++ {
		tmpPath := filepath.Join(params.OutDir, fmt.Sprintf(".tmp.%s.%d", params.OutBase, c))
		f, err := os.Create(tmpPath)
		if err != nil {
			return ChunkResult{}, fmt.Errorf("split: cpu %d: create temp file: %w", c, err)
		}
		states[c] = &cpuState{
			cpu:  c,
			file: f,
			path: tmpPath,
			page: page.New(c, f, order, pageSize, longSize),
		}
	}
	defer func() {
		for _, st := range states {
			st.file.Close()
		}
	}()

	if params.StartTS > 0 {
		for c := 0; c < cpuCount; c++ {
			if !active[c] {
				continue
			}
			if err := d.in.SeekCPUToTimestamp(c, params.StartTS); err != nil {
				return ChunkResult{}, fmt.Errorf("split: cpu %d: seek: %w", c, err)
			}
		}
	}

	d.logger.Debugf("chunk: start_ts=%d end_ts=%d per_cpu=%v predicate=%v", params.StartTS, params.EndTS, params.PerCPU, params.Predicate.Kind)

	var result ChunkResult
	var err error
	if params.PerCPU {
		result, err = d.runPerCPU(params, states, active)
	} else {
		result, err = d.runGlobal(params, states, active)
	}
	if err != nil {
		return ChunkResult{}, err
	}

	for _, st := range states {
		wasOpen := st.page.IsOpen()
		if err := st.page.Flush(); err != nil {
			return ChunkResult{}, err
		}
		if wasOpen {
			st.pagesFlushed++
		}
		result.PagesFlushed += st.pagesFlushed
	}

	result.TempFiles = map[int]string{}
	for _, st := range states {
		result.TempFiles[st.cpu] = st.path
	}

	result.NextStartTS, err = d.computeNextStartTS(params, states)
	if err != nil {
		return ChunkResult{}, err
	}

	d.logger.Infof("chunk: wrote %d records across %d pages, next_start_ts=%d", result.RecordsWritten, result.PagesFlushed, result.NextStartTS)

	return result, nil
}

// appendToCPU drives one record through a CPU's Page Builder,
// flushing and opening pages as needed (spec.md §4.5 step 4a/4b).
//
// The very first page a CPU opens counts as a page-creation event too
// (the reference parse_cpu primes cpu_data[cpu].index = page_size + 1
// so the first record always takes the "needs new page" branch): a
// Pages predicate of N must count that first page, or a chunk would
// hold one more page than requested.
func (d *Driver) appendToCPU(params ChunkParams, st *cpuState, rec interfaces.Record) (terminate bool, err error) {
	for {
		needsNewPage := !st.page.IsOpen()
		if !needsNewPage {
			res, err := st.page.TryAppend(rec)
			if err != nil {
				return false, err
			}
			if res == page.Appended {
				return false, nil
			}
			needsNewPage = true
		}

		st.pageBoundaries++
		if params.Predicate.Kind == PredicatePages && st.pageBoundaries > params.Predicate.N {
			return true, nil
		}

		if st.page.IsOpen() {
			if err := st.page.Flush(); err != nil {
				return false, err
			}
			st.pagesFlushed++
			d.logger.Debugf("cpu %d: flushed page %d", st.cpu, st.pagesFlushed)
		}
		st.page.Open(rec)
	}
}

func (d *Driver) runGlobal(params ChunkParams, states map[int]*cpuState, active []bool) (ChunkResult, error) {
	var result ChunkResult

	rec, cpu, ok, err := d.in.ReadNextRecord()
	if err != nil {
		return result, fmt.Errorf("split: read first record: %w", err)
	}
	if !ok {
		return result, nil
	}
	if params.StartTS == 0 {
		params.StartTS = rec.Timestamp
	}

	for ok {
		if params.EndTS != 0 && rec.Timestamp > params.EndTS {
			break
		}

		st := states[cpu]
		tracked := cpu >= 0 && cpu < len(active) && active[cpu]
		if tracked {
			terminate, err := d.appendToCPU(params, st, rec)
			if err != nil {
				return result, err
			}
			if terminate {
				break
			}
			result.RecordsWritten++
		}

		var nextRec interfaces.Record
		var nextCPU int
		nextRec, nextCPU, ok, err = d.in.ReadNextRecord()
		if err != nil {
			return result, fmt.Errorf("split: read next record: %w", err)
		}

		if tracked {
			peekTS := nextRec.Timestamp
			hasPeek := ok && (params.EndTS == 0 || nextRec.Timestamp <= params.EndTS)
			if params.Predicate.fires(params.StartTS, result.RecordsWritten, st.pagesFlushed, peekTS, hasPeek) {
				break
			}
		}

		rec, cpu = nextRec, nextCPU
	}

	return result, nil
}

// runPerCPU processes each active CPU's stream independently to
// completion, in the manner of the reference parse_file calling
// parse_cpu once per CPU: a predicate firing on one CPU only ends that
// CPU's contribution to this chunk, it does not cut off the CPUs
// processed after it.
func (d *Driver) runPerCPU(params ChunkParams, states map[int]*cpuState, active []bool) (ChunkResult, error) {
	var result ChunkResult

	firstRecordSeen := false

	for _, c := range orderedActiveCPUs(active) {
		st := states[c]
		var cpuEventsAppended uint64

		rec, ok, err := d.in.ReadCPURecord(c)
		if err != nil {
			return result, fmt.Errorf("split: cpu %d: read first record: %w", c, err)
		}
		if !ok {
			continue
		}
		if params.StartTS == 0 && !firstRecordSeen {
			params.StartTS = rec.Timestamp
			firstRecordSeen = true
		}

		for ok {
			if params.EndTS != 0 && rec.Timestamp > params.EndTS {
				break
			}

			terminate, err := d.appendToCPU(params, st, rec)
			if err != nil {
				return result, err
			}
			if terminate {
				break
			}
			result.RecordsWritten++
			cpuEventsAppended++

			var nextRec interfaces.Record
			nextRec, ok, err = d.in.ReadCPURecord(c)
			if err != nil {
				return result, fmt.Errorf("split: cpu %d: read next record: %w", c, err)
			}

			peekTS := nextRec.Timestamp
			hasPeek := ok && (params.EndTS == 0 || nextRec.Timestamp <= params.EndTS)
			if params.Predicate.fires(params.StartTS, cpuEventsAppended, st.pagesFlushed, peekTS, hasPeek) {
				break
			}

			rec = nextRec
		}
	}

	return result, nil
}

// orderedActiveCPUs returns the active CPU indices in ascending order
// (active is already index-ordered, so this is just a filter).
func orderedActiveCPUs(active []bool) []int {
	cpus := make([]int, 0, len(active))
	for c, on := range active {
		if on {
			cpus = append(cpus, c)
		}
	}
	return cpus
}

// computeNextStartTS implements spec.md §4.5 step 6: one past the
// largest of end_ts (if nonzero) and every CPU's own last-written
// record's timestamp — both are inclusive boundaries of this chunk,
// so the next chunk must start strictly after them (matching the
// reference parse_file's "current = record->ts + 1" using the record
// at the recorded offset itself, not its successor).
func (d *Driver) computeNextStartTS(params ChunkParams, states map[int]*cpuState) (uint64, error) {
	var runningMax uint64
	var have bool

	if params.EndTS != 0 {
		runningMax = params.EndTS
		have = true
	}

	for _, st := range states {
		offset, ok := st.page.LastRecordOffset()
		if !ok {
			continue
		}
		last, found, err := d.in.ReadAtOffset(st.cpu, offset)
		if err != nil {
			return 0, fmt.Errorf("split: cpu %d: read at offset %d: %w", st.cpu, offset, err)
		}
		if !found {
			continue
		}
		if !have || last.Timestamp > runningMax {
			runningMax = last.Timestamp
			have = true
		}
	}

	if !have {
		return 0, nil
	}
	return runningMax + 1, nil
}
