package tracesplit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/behrlich/tracesplit/internal/logging"
	"github.com/behrlich/tracesplit/internal/split"
)

// OutputOpener creates the OutputTrace a chunk should be written to,
// given the path the caller wants that chunk's file at. It is a
// factory rather than a single OutputTrace because repeat mode opens
// one file per chunk (spec.md §4.6).
type OutputOpener func(path string) (split.OutputTrace, error)

// SplitParams are the Repeat Controller's inputs (spec.md §4.6), the
// counterpart of the teacher's DeviceParams.
type SplitParams struct {
	// Input is the trace this run reads from.
	Input split.InputTrace

	// NewOutput opens the OutputTrace for a given chunk's output path.
	NewOutput OutputOpener

	// OutputPath is the final output path when Repeat is false, or the
	// base path repeat filenames are derived from (spec.md §4.6:
	// "<base>.NNNN") when Repeat is true.
	OutputPath string

	// StartTS is the first chunk's start timestamp; 0 means "from the
	// first record".
	StartTS uint64

	// EndTS bounds every chunk; 0 means open-ended.
	EndTS uint64

	Predicate split.Predicate
	PerCPU    bool

	CPUFilter    int
	HasCPUFilter bool

	// Repeat enables the repeat loop (spec.md §4.6); off runs the
	// Chunk Driver exactly once to OutputPath.
	Repeat bool

	// TempDir holds the per-CPU temp files a chunk builds before the
	// container writer consumes them; defaults to OutputPath's
	// directory.
	TempDir string

	Logger *logging.Logger
}

// DefaultSplitParams returns SplitParams with PredicateNone, no
// repeat, no CPU filter — the "identity split" of spec.md §8 scenario
// 1 — wired to in/out and the logging package default, mirroring
// DefaultParams(backend) from the teacher.
func DefaultSplitParams(in split.InputTrace, newOutput OutputOpener, outputPath string) SplitParams {
	return SplitParams{
		Input:      in,
		NewOutput:  newOutput,
		OutputPath: outputPath,
		Predicate:  split.Predicate{Kind: split.PredicateNone},
		Logger:     logging.Default(),
	}
}

// RepeatSplit runs the Chunk Driver to completion (spec.md §4.5), then
// — if params.Repeat is set — keeps invoking it against successive
// "<base>.NNNN" output files, feeding each chunk's NextStartTS back in
// as the next chunk's StartTS, stopping when NextStartTS is 0 or has
// reached EndTS (spec.md §4.6), or when a repeated chunk finds no
// records (no file is written for it). Any error aborts the run immediately;
// repeat mode never continues past a failed chunk (spec.md §7).
func RepeatSplit(params SplitParams) (*Metrics, error) {
	logger := params.Logger
	if logger == nil {
		logger = logging.Default()
	}

	tempDir := params.TempDir
	if tempDir == "" {
		tempDir = filepath.Dir(params.OutputPath)
	}
	outBase := filepath.Base(params.OutputPath)

	drv := split.NewDriver(params.Input, logger)
	metrics := NewMetrics()

	startTS := params.StartTS
	chunkIndex := 1

	for {
		outPath := params.OutputPath
		if params.Repeat {
			outPath = fmt.Sprintf("%s.%04d", params.OutputPath, chunkIndex)
		}

		logger.Infof("split: chunk %d -> %s", chunkIndex, outPath)

		result, err := drv.Run(split.ChunkParams{
			StartTS:      startTS,
			EndTS:        params.EndTS,
			Predicate:    params.Predicate,
			PerCPU:       params.PerCPU,
			CPUFilter:    params.CPUFilter,
			HasCPUFilter: params.HasCPUFilter,
			OutDir:       tempDir,
			OutBase:      outBase,
		})
		if err != nil {
			return metrics, WrapError(fmt.Sprintf("run_chunk[%d]", chunkIndex), err)
		}

		// A repeated chunk that finds no records left marks the end of
		// the input; it is not written out as a chunk of its own.
		if params.Repeat && chunkIndex > 1 && result.RecordsWritten == 0 {
			for _, f := range result.TempFiles {
				_ = os.Remove(f)
			}
			return metrics, nil
		}

		if err := writeChunkOutput(params, outPath, result); err != nil {
			return metrics, WrapError(fmt.Sprintf("write_chunk[%d]", chunkIndex), err)
		}

		var bytesWritten uint64
		if ps := params.Input.PageSize(); ps > 0 {
			bytesWritten = result.PagesFlushed * uint64(ps)
		}
		metrics.RecordChunk(result.PagesFlushed, result.RecordsWritten, bytesWritten)

		if !params.Repeat {
			return metrics, nil
		}

		startTS = result.NextStartTS
		chunkIndex++

		if startTS == 0 || (params.EndTS != 0 && startTS >= params.EndTS) {
			return metrics, nil
		}
	}
}

// writeChunkOutput hands one finished chunk's per-CPU temp files to
// the container writer and unlinks them once it has consumed them
// (spec.md §5: "temp files are unlinked after the container writer
// has consumed them").
func writeChunkOutput(params SplitParams, outPath string, result split.ChunkResult) error {
	out, err := params.NewOutput(outPath)
	if err != nil {
		return fmt.Errorf("open output %q: %w", outPath, err)
	}

	if err := out.CopyHeaderFrom(params.Input); err != nil {
		return fmt.Errorf("copy header: %w", err)
	}
	if err := out.SetOutClock(params.Input.ClockName()); err != nil {
		return fmt.Errorf("set out clock: %w", err)
	}

	cpuFiles := make([]string, params.Input.CPUCount())
	for c := range cpuFiles {
		cpuFiles[c] = result.TempFiles[c]
	}
	if err := out.AppendCPUData(cpuFiles); err != nil {
		return fmt.Errorf("append cpu data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	for _, f := range result.TempFiles {
		_ = os.Remove(f)
	}
	return nil
}
