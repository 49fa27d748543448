package tracesplit

import "sync/atomic"

// Metrics tracks run-wide counters for a trace-split invocation. The
// core is single-threaded, so unlike a queue-serving daemon there's no
// latency histogram to maintain — only cumulative counts, which are
// still atomic so a CLI can print a live Snapshot from a signal
// handler without racing the splitter.
type Metrics struct {
	ChunksWritten   atomic.Uint64
	PagesFlushed    atomic.Uint64
	RecordsWritten  atomic.Uint64
	BytesWritten    atomic.Uint64
	TimeExtends     atomic.Uint64
	MissedEventSums atomic.Uint64
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordChunk records one completed chunk's totals.
func (m *Metrics) RecordChunk(pagesFlushed, recordsWritten, bytesWritten uint64) {
	m.ChunksWritten.Add(1)
	m.PagesFlushed.Add(pagesFlushed)
	m.RecordsWritten.Add(recordsWritten)
	m.BytesWritten.Add(bytesWritten)
}

// RecordTimeExtend records one TIME_EXTEND escape emitted by the
// encoder.
func (m *Metrics) RecordTimeExtend() {
	m.TimeExtends.Add(1)
}

// RecordMissedEvents records a missed-events annotation carried by an
// output page.
func (m *Metrics) RecordMissedEvents(count uint64) {
	m.MissedEventSums.Add(count)
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	ChunksWritten   uint64
	PagesFlushed    uint64
	RecordsWritten  uint64
	BytesWritten    uint64
	TimeExtends     uint64
	MissedEventSums uint64
}

// Snapshot returns a point-in-time copy of m's counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ChunksWritten:   m.ChunksWritten.Load(),
		PagesFlushed:    m.PagesFlushed.Load(),
		RecordsWritten:  m.RecordsWritten.Load(),
		BytesWritten:    m.BytesWritten.Load(),
		TimeExtends:     m.TimeExtends.Load(),
		MissedEventSums: m.MissedEventSums.Load(),
	}
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.ChunksWritten.Store(0)
	m.PagesFlushed.Store(0)
	m.RecordsWritten.Store(0)
	m.BytesWritten.Store(0)
	m.TimeExtends.Store(0)
	m.MissedEventSums.Store(0)
}
