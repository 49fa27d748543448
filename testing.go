package tracesplit

import (
	"github.com/behrlich/tracesplit/internal/constants"
	"github.com/behrlich/tracesplit/internal/container"
)

// MockRecord is a convenience literal for building MockInputTrace
// fixtures — the counterpart of the teacher's MockBackend record
// fixtures, sized down to what a record needs.
type MockRecord struct {
	Timestamp    uint64
	Payload      []byte
	MissedEvents uint64
}

// MockInputTraceOptions configures NewMockInputTrace.
type MockInputTraceOptions struct {
	PageSize  int
	LongSize  int
	BigEndian bool
	ClockName string

	// CPUs holds one record slice per CPU, already in per-CPU
	// timestamp order (matching a real ring-buffer's monotonic
	// per-CPU ordering).
	CPUs [][]MockRecord
}

// NewMockInputTrace builds an in-memory InputTrace/OutputTrace double
// for tests, wrapping internal/container.Memory; the top-level
// integration test builds its fixtures with it (spec.md §8's end-to-end
// scenarios: N CPUs x records, missed-event injection, per-CPU
// page-fill behavior). The internal packages' tests build
// container.Memory fixtures or records directly.
func NewMockInputTrace(opts MockInputTraceOptions) *container.Memory {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	longSize := opts.LongSize
	if longSize == 0 {
		longSize = DefaultLongSize
	}
	clockName := opts.ClockName
	if clockName == "" {
		clockName = "local"
	}

	perCPU := make([][]container.Record, len(opts.CPUs))
	for c, recs := range opts.CPUs {
		converted := make([]container.Record, len(recs))
		for i, r := range recs {
			converted[i] = container.Record{
				Timestamp:    r.Timestamp,
				Payload:      r.Payload,
				PayloadLen:   uint16(len(r.Payload)),
				RecordSize:   uint16(framedRecordSize(len(r.Payload))),
				MissedEvents: r.MissedEvents,
			}
		}
		perCPU[c] = converted
	}

	return container.NewMemory(pageSize, longSize, opts.BigEndian, clockName, perCPU)
}

// framedRecordSize computes the on-disk framed size of a record with
// the given un-padded payload length: a 4-byte header, plus a 4-byte
// explicit length word once the payload exceeds what the inline
// len_field can encode (spec.md §4.2), plus the payload padded to a
// 4-byte multiple.
func framedRecordSize(payloadLen int) int {
	padded := (payloadLen + 3) &^ 3
	if payloadLen > constants.LenFieldInlineMax*4 {
		return 8 + padded
	}
	return 4 + padded
}
