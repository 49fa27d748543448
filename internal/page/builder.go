package page

import (
	"fmt"
	"os"

	"github.com/behrlich/tracesplit/internal/constants"
	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/wire"
)

// AppendResult reports the outcome of TryAppend.
type AppendResult int

const (
	// Appended means the record was encoded into the page.
	Appended AppendResult = iota
	// NeedsNewPage means the page is full, or the record carries a
	// missed-events annotation that must start a fresh page; the
	// caller must flush the current page and open a new one before
	// retrying the same record.
	NeedsNewPage
)

// NoOpenPageSentinel is not referenced by Page: a Page that hasn't had
// open_page called yet is marked by writeIdx = pageSize + 1, set in New
// and tested by IsOpen.
const NoOpenPageSentinel = -1

// Page is the mutable per-CPU in-flight page buffer (spec's CpuPage,
// renamed to avoid stuttering with the package name).
type Page struct {
	CPU int
	Fd  *os.File

	order    wire.Order
	pageSize int
	longSize int

	buffer              []byte
	writeIdx            int
	commitSlot          int
	baseTS              uint64
	pendingMissed       uint64
	hasPendingMissed    bool
	lastRecordOffset    uint64
	hasLastRecordOffset bool
}

// New creates a Page not yet backed by an open page buffer; Open must
// be called before TryAppend.
func New(cpu int, fd *os.File, order wire.Order, pageSize, longSize int) *Page {
	return &Page{
		CPU:      cpu,
		Fd:       fd,
		order:    order,
		pageSize: pageSize,
		longSize: longSize,
		writeIdx: pageSize + 1,
	}
}

// IsOpen reports whether a page buffer is currently in flight.
func (p *Page) IsOpen() bool {
	return p.writeIdx <= p.pageSize
}

// Open zeroes the buffer, writes the base timestamp header, reserves
// the commit slot, and primes base_ts/pending_missed_events from
// first (spec.md §4.3 open_page).
func (p *Page) Open(first interfaces.Record) {
	p.buffer = GetPageBuffer(p.pageSize)
	p.order.PutU64(p.buffer[0:8], first.Timestamp)

	p.commitSlot = 8
	headerBytes := constants.HeaderBytes(p.longSize)
	p.writeIdx = headerBytes
	p.baseTS = first.Timestamp

	if first.MissedEvents != 0 {
		p.pendingMissed = first.MissedEvents
		p.hasPendingMissed = true
	} else {
		p.pendingMissed = 0
		p.hasPendingMissed = false
	}
}

// TryAppend encodes record into the page, or reports NeedsNewPage if
// it doesn't fit or forces a page boundary (spec.md §4.3 try_append).
func (p *Page) TryAppend(record interfaces.Record) (AppendResult, error) {
	need := int(record.RecordSize)
	if record.Timestamp-p.baseTS > constants.MaxInlineDelta {
		need += 8 // TIME_EXTEND escape written ahead of the record
	}
	if p.writeIdx+need > p.pageSize {
		return NeedsNewPage, nil
	}
	if record.MissedEvents != 0 && p.writeIdx != constants.HeaderBytes(p.longSize) {
		return NeedsNewPage, nil
	}

	for {
		res, err := wire.EncodeRecord(p.order, p.buffer, p.writeIdx, record.Timestamp, p.baseTS,
			record.Payload, int(record.PayloadLen), int(record.RecordSize))
		if err != nil {
			return 0, fmt.Errorf("page: cpu %d: %w", p.CPU, err)
		}

		p.writeIdx += res.BytesWritten
		p.baseTS = res.NewBaseTS

		if res.TimeExtend {
			continue
		}
		break
	}

	p.lastRecordOffset = record.Offset
	p.hasLastRecordOffset = true
	return Appended, nil
}

// LastRecordOffset returns the offset of the last record written to
// this page and whether any record has been written at all.
func (p *Page) LastRecordOffset() (uint64, bool) {
	return p.lastRecordOffset, p.hasLastRecordOffset
}

// Flush writes the commit field and the full page_size buffer to the
// temp fd, then releases the buffer back to the pool.
func (p *Page) Flush() error {
	if !p.IsOpen() {
		return nil
	}

	headerBytes := constants.HeaderBytes(p.longSize)
	payloadBytes := uint32(p.writeIdx - headerBytes)

	var flags uint32
	if p.hasPendingMissed {
		flags |= constants.MissingEvents
		flags |= constants.MissingStored
	}
	commit := payloadBytes | flags

	if p.longSize == 8 {
		p.order.PutU64(p.buffer[p.commitSlot:p.commitSlot+8], uint64(commit))
	} else {
		p.order.PutU32(p.buffer[p.commitSlot:p.commitSlot+4], commit)
	}

	if p.hasPendingMissed {
		if p.writeIdx+8 > len(p.buffer) {
			return fmt.Errorf("page: cpu %d: no room for missed-events count at write_idx %d", p.CPU, p.writeIdx)
		}
		p.order.PutU64(p.buffer[p.writeIdx:p.writeIdx+8], p.pendingMissed)
	}

	n, err := p.Fd.Write(p.buffer)
	if err != nil {
		return fmt.Errorf("page: cpu %d: write: %w", p.CPU, err)
	}
	if n != len(p.buffer) {
		return fmt.Errorf("page: cpu %d: short write: wrote %d of %d bytes", p.CPU, n, len(p.buffer))
	}

	PutPageBuffer(p.buffer)
	p.buffer = nil
	p.writeIdx = p.pageSize + 1
	p.hasPendingMissed = false
	p.pendingMissed = 0

	return nil
}
