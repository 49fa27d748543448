package page

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/tracesplit/internal/constants"
	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/wire"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "page-builder-*")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func simpleRecord(ts uint64, payload []byte, missed uint64, offset uint64) interfaces.Record {
	padded := (len(payload) + 3) &^ 3
	return interfaces.Record{
		Timestamp:    ts,
		Payload:      payload,
		PayloadLen:   uint16(len(payload)),
		RecordSize:   uint16(4 + padded),
		Offset:       offset,
		MissedEvents: missed,
	}
}

func TestPageOpenInitializesHeader(t *testing.T) {
	f := tempFile(t)
	p := New(0, f, wire.NewOrder(false), constants.DefaultPageSize, 8)

	assert.False(t, p.IsOpen())

	rec := simpleRecord(100, []byte{1, 2, 3, 4}, 0, 0)
	p.Open(rec)

	assert.True(t, p.IsOpen())
	assert.Equal(t, constants.HeaderBytes(8), p.writeIdx)
	assert.Equal(t, uint64(100), p.baseTS)

	order := wire.NewOrder(false)
	gotTS := order.U64(p.buffer[0:8])
	assert.Equal(t, uint64(100), gotTS)
}

func TestPageAppendAndFlushCommitField(t *testing.T) {
	f := tempFile(t)
	order := wire.NewOrder(false)
	p := New(1, f, order, constants.DefaultPageSize, 8)

	first := simpleRecord(100, []byte{1, 2, 3, 4}, 0, 10)
	p.Open(first)

	res, err := p.TryAppend(first)
	require.NoError(t, err)
	assert.Equal(t, Appended, res)

	second := simpleRecord(110, []byte{5, 6, 7, 8}, 0, 20)
	res, err = p.TryAppend(second)
	require.NoError(t, err)
	assert.Equal(t, Appended, res)

	lastOffset, ok := p.LastRecordOffset()
	assert.True(t, ok)
	assert.Equal(t, uint64(20), lastOffset)

	wantWriteIdx := p.writeIdx
	require.NoError(t, p.Flush())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Len(t, data, constants.DefaultPageSize)

	commit := order.U32(data[8:12])
	headerBytes := constants.HeaderBytes(8)
	assert.Equal(t, uint32(wantWriteIdx-headerBytes), commit&0x3fffffff)
	assert.Zero(t, commit&(constants.MissingEvents|constants.MissingStored))
}

func TestPageNeedsNewPageWhenFull(t *testing.T) {
	f := tempFile(t)
	p := New(2, f, wire.NewOrder(false), 32, 8)

	first := simpleRecord(0, make([]byte, 8), 0, 0)
	p.Open(first)

	_, err := p.TryAppend(first)
	require.NoError(t, err)

	big := simpleRecord(5, make([]byte, 40), 0, 1)
	res, err := p.TryAppend(big)
	require.NoError(t, err)
	assert.Equal(t, NeedsNewPage, res)
}

func TestPageMissedEventsForcesNewPageMidPage(t *testing.T) {
	f := tempFile(t)
	p := New(3, f, wire.NewOrder(false), constants.DefaultPageSize, 8)

	first := simpleRecord(0, []byte{1, 2, 3, 4}, 0, 0)
	p.Open(first)
	_, err := p.TryAppend(first)
	require.NoError(t, err)

	withMissed := simpleRecord(10, []byte{1, 2, 3, 4}, 7, 1)
	res, err := p.TryAppend(withMissed)
	require.NoError(t, err)
	assert.Equal(t, NeedsNewPage, res, "a mid-page record with missed events must force a page boundary")

	require.NoError(t, p.Flush())

	p.Open(withMissed)
	res, err = p.TryAppend(withMissed)
	require.NoError(t, err)
	assert.Equal(t, Appended, res, "the same record must append cleanly as the first record of a fresh page")

	order := wire.NewOrder(false)
	require.NoError(t, p.Flush())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Len(t, data, constants.DefaultPageSize*2)

	secondPage := data[constants.DefaultPageSize:]
	commit := order.U32(secondPage[8:12])
	assert.NotZero(t, commit&constants.MissingEvents)
	assert.NotZero(t, commit&constants.MissingStored)
}

func TestPageTimeExtendCountsTowardWriteIdx(t *testing.T) {
	f := tempFile(t)
	order := wire.NewOrder(false)
	p := New(4, f, order, constants.DefaultPageSize, 8)

	first := simpleRecord(0, []byte{1, 2, 3, 4}, 0, 0)
	p.Open(first)
	_, err := p.TryAppend(first)
	require.NoError(t, err)

	startIdx := p.writeIdx

	farFuture := simpleRecord(uint64(constants.MaxInlineDelta)+500, []byte{9, 9, 9, 9}, 0, 1)
	res, err := p.TryAppend(farFuture)
	require.NoError(t, err)
	assert.Equal(t, Appended, res)

	// TIME_EXTEND (8 bytes) plus the retried record's normal framing.
	assert.Equal(t, startIdx+8+int(farFuture.RecordSize), p.writeIdx)
	assert.Equal(t, farFuture.Timestamp, p.baseTS)
}
