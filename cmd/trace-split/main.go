// Command trace-split re-encodes a kernel trace capture into smaller
// capture files, sliced by wall-clock window, duration, event count,
// or page count (spec.md §4.6, the Repeat Controller's CLI surface).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/behrlich/tracesplit"
	"github.com/behrlich/tracesplit/internal/container"
	"github.com/behrlich/tracesplit/internal/logging"
	"github.com/behrlich/tracesplit/internal/split"
)

// openOutput adapts container.Create to tracesplit.OutputOpener, whose
// return type is the split.OutputTrace interface rather than *Writer.
func openOutput(path string) (split.OutputTrace, error) {
	return container.Create(path)
}

func main() {
	var (
		input    = flag.String("i", "trace.dat", "input trace file")
		output   = flag.String("o", "", "output file (default: input file, or input file with a .1 suffix if not repeating)")
		seconds  = flag.Int("s", 0, "split into chunks of this many seconds")
		millis   = flag.Int("m", 0, "split into chunks of this many milliseconds")
		micros   = flag.Int("u", 0, "split into chunks of this many microseconds")
		events   = flag.Int("e", 0, "split into chunks of this many events")
		pages    = flag.Int("p", 0, "split into chunks of this many pages per CPU")
		repeat   = flag.Bool("r", false, "repeat the split until the input is exhausted")
		perCPU   = flag.Bool("c", false, "process per CPU instead of in global timestamp order")
		cpu      = flag.Int("C", -1, "restrict the split to a single CPU")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Usage = usage
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	predicate, err := resolvePredicate(*seconds, *millis, *micros, *events, *pages)
	if err != nil {
		logger.Error("bad split type", "error", err)
		os.Exit(1)
	}
	if predicate.Kind == split.PredicatePages {
		*perCPU = true
	}

	startTS, endTS, err := parseWindow(flag.Args())
	if err != nil {
		logger.Error("bad time window", "error", err)
		os.Exit(1)
	}

	outPath := resolveOutputPath(*output, *input, *repeat)

	in, err := container.Open(*input)
	if err != nil {
		logger.Error("failed to open input", "error", err)
		os.Exit(1)
	}
	defer in.Close()

	if in.FileState() == split.FileStateCPULatency {
		logger.Error("trace-split does not work with latency traces")
		os.Exit(1)
	}

	params := tracesplit.DefaultSplitParams(in, openOutput, outPath)
	params.StartTS = startTS
	params.EndTS = endTS
	params.Predicate = predicate
	params.PerCPU = *perCPU
	params.Repeat = *repeat
	params.Logger = logger
	if *cpu >= 0 {
		params.HasCPUFilter = true
		params.CPUFilter = *cpu
	}

	metrics, err := tracesplit.RepeatSplit(params)
	if err != nil {
		logger.Error("split failed", "error", err)
		os.Exit(1)
	}

	snap := metrics.Snapshot()
	logger.Info("split complete",
		"chunks", snap.ChunksWritten,
		"records", snap.RecordsWritten,
		"pages", snap.PagesFlushed,
		"bytes", snap.BytesWritten,
		"time_extends", snap.TimeExtends)
}

// resolvePredicate enforces "only one type of split is allowed"
// (trace-split.c's trace_split), in the order the original's
// fall-through switch checks flags: -s, -m, -u, -e, -p.
func resolvePredicate(seconds, millis, micros, events, pages int) (split.Predicate, error) {
	type option struct {
		n    int
		kind split.PredicateKind
		name string
	}
	opts := []option{
		{seconds, split.PredicateSeconds, "-s"},
		{millis, split.PredicateMillis, "-m"},
		{micros, split.PredicateMicros, "-u"},
		{events, split.PredicateEvents, "-e"},
		{pages, split.PredicatePages, "-p"},
	}

	chosen := split.Predicate{Kind: split.PredicateNone}
	seen := ""
	for _, o := range opts {
		if o.n == 0 {
			continue
		}
		if o.n < 0 {
			return split.Predicate{}, fmt.Errorf("%s: units must be greater than 0", o.name)
		}
		if seen != "" {
			return split.Predicate{}, fmt.Errorf("only one type of split is allowed (%s and %s given)", seen, o.name)
		}
		chosen = split.Predicate{Kind: o.kind, N: uint64(o.n)}
		seen = o.name
	}
	return chosen, nil
}

// parseWindow parses the positional start/end arguments, in seconds,
// as floating point offsets converted to nanoseconds — trace-split.c
// accepts "1.5 3.25" rather than requiring whole seconds.
func parseWindow(args []string) (startNS, endNS uint64, err error) {
	if len(args) == 0 {
		return 0, 0, nil
	}
	if len(args) > 2 {
		return 0, 0, fmt.Errorf("too many positional arguments")
	}

	start, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("start value not floating point: %s", args[0])
	}
	startNS = uint64(start * 1_000_000_000)

	if len(args) == 2 {
		end, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("end value not floating point: %s", args[1])
		}
		endNS = uint64(end * 1_000_000_000)
		if endNS < startNS {
			return 0, 0, fmt.Errorf("end is less than start")
		}
	}
	return startNS, endNS, nil
}

// resolveOutputPath mirrors trace_split's default-output handling: if
// no -o was given, default to the input path, but append a ".1" suffix
// when not repeating so a single-chunk split never overwrites its own
// input (trace-split.c lines 546-552).
func resolveOutputPath(output, input string, repeat bool) string {
	if output != "" {
		return output
	}
	if !repeat {
		return input + ".1"
	}
	return input
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: trace-split [options] [start [end]]

Split a trace capture into smaller capture files by time window,
duration, event count, or page count.

  -i file    input trace file (default trace.dat)
  -o file    output file (default: input file, or input.1 if splitting once)
  -s n       split every n seconds
  -m n       split every n milliseconds
  -u n       split every n microseconds
  -e n       split every n events
  -p n       split every n pages per CPU (implies -c)
  -r         repeat the split until the input is exhausted
  -c         process per CPU instead of in global timestamp order
  -C cpu     restrict the split to a single CPU
  -v         verbose output

start and end are given in seconds, e.g. "trace-split -s 5 -r 1.5 10"
`)
}
