package split

// PredicateKind tags which variant of the Split Predicate table
// (spec.md §4.4) a Predicate carries.
type PredicateKind int

const (
	// PredicateNone terminates a chunk only on input exhaustion or
	// end_ts.
	PredicateNone PredicateKind = iota
	PredicateSeconds
	PredicateMillis
	PredicateMicros
	PredicateEvents
	PredicatePages
)

// Predicate is the tagged-variant Split Predicate, a plain struct
// rather than an interface since the driver is the only thing that
// ever evaluates it (spec.md §3's SplitPredicate, SPEC_FULL.md §3).
type Predicate struct {
	Kind PredicateKind
	N    uint64
}

// RequiresPerCPU reports whether this predicate is only meaningful in
// per-CPU routing mode (spec.md §4.4: "Pages forces per-CPU mode
// because page counts are only meaningful per CPU").
func (p Predicate) RequiresPerCPU() bool {
	return p.Kind == PredicatePages
}

// durationNanos returns the nanosecond window for time-based
// predicates, and ok == false for predicates that aren't duration
// based.
func (p Predicate) durationNanos() (nanos uint64, ok bool) {
	switch p.Kind {
	case PredicateSeconds:
		return p.N * 1_000_000_000, true
	case PredicateMillis:
		return p.N * 1_000_000, true
	case PredicateMicros:
		return p.N * 1_000, true
	default:
		return 0, false
	}
}

// fires evaluates the predicate after a successful append, given the
// chunk's start timestamp, the next (peeked) record's timestamp if
// any, the running event count for
// this chunk, and the page-flush count for the CPU that just
// appended. peekTS/hasPeek describe the next record in the same
// routing order the driver is using.
func (p Predicate) fires(startTS uint64, eventsAppended uint64, pagesFlushedThisCPU uint64, peekTS uint64, hasPeek bool) bool {
	switch p.Kind {
	case PredicateNone:
		return false
	case PredicateSeconds, PredicateMillis, PredicateMicros:
		window, _ := p.durationNanos()
		if !hasPeek {
			return false
		}
		return peekTS > startTS+window
	case PredicateEvents:
		return eventsAppended >= p.N
	case PredicatePages:
		return pagesFlushedThisCPU > p.N
	default:
		return false
	}
}
