package wire

import (
	"fmt"

	"github.com/behrlich/tracesplit/internal/constants"
)

// headerWord packs delta and lenField into the 4-byte record header,
// per spec.md §4.2. Layout depends on capture endianness:
//
//	big-endian capture:    header = delta | (lenField << 27)
//	little-endian capture: header = (delta << 5) | lenField
func headerWord(o Order, delta uint32, lenField uint32) uint32 {
	if o.BigEndian() {
		return delta | (lenField << constants.DeltaBits)
	}
	return (delta << 5) | lenField
}

// EncodeResult reports what EncodeRecord actually wrote.
type EncodeResult struct {
	// TimeExtend is true when the encoder emitted a TIME_EXTEND escape
	// record instead of the caller's payload. The caller must retry the
	// same record; its delta against the (now-advanced) base timestamp
	// will be smaller.
	TimeExtend bool

	// BytesWritten is the number of bytes written to buf starting at
	// the original offset.
	BytesWritten int

	// NewBaseTS is the base timestamp after this write: the record's
	// own timestamp on a normal write, or base+delta on a TIME_EXTEND.
	NewBaseTS uint64
}

// EncodeRecord writes one record (or, if the delta overflows, a
// TIME_EXTEND escape standing in for it) into buf starting at offset,
// per spec.md §4.2's overflow rule and header layout.
//
// payloadSize is the record's un-padded payload length; frameSize is
// the on-disk framed size the caller has already computed for this
// record (header + optional length word + padded payload), used only
// to assert the encoder's own math agrees with the caller's (spec.md
// §4.2, "Encode" error kind).
func EncodeRecord(o Order, buf []byte, offset int, ts, baseTS uint64, payload []byte, payloadSize, frameSize int) (EncodeResult, error) {
	delta := ts - baseTS

	if delta > constants.MaxInlineDelta {
		return encodeTimeExtend(o, buf, offset, baseTS, delta), nil
	}

	var lenField uint32
	if payloadSize > 0 && payloadSize <= constants.LenFieldInlineMax*4 {
		lenField = uint32(payloadSize+3) / 4
	}

	ptr := offset
	o.PutU32(buf[ptr:ptr+4], headerWord(o, uint32(delta), lenField))
	ptr += 4
	written := 4

	if lenField == constants.LenFieldExplicit {
		explicitLen := payloadSize + 4
		if explicitLen+4 > frameSize {
			return EncodeResult{}, fmt.Errorf("%w: expect %d actual %d", ErrBadFraming, frameSize, explicitLen+4)
		}
		o.PutU32(buf[ptr:ptr+4], uint32(explicitLen))
		ptr += 4
		written += 4
	}

	padded := (payloadSize + 3) &^ 3
	copy(buf[ptr:ptr+padded], payload[:payloadSize])
	written += padded

	return EncodeResult{BytesWritten: written, NewBaseTS: ts}, nil
}

// encodeTimeExtend writes an 8-byte TIME_EXTEND escape record carrying
// the full delta: the low DeltaBits bits in the header word, the high
// bits in a trailing 4-byte word. It advances the base timestamp by the
// full delta and returns no payload; the caller retries the original
// record, whose delta against the new base is then small.
func encodeTimeExtend(o Order, buf []byte, offset int, baseTS, delta uint64) EncodeResult {
	low := uint32(delta & (constants.MaxInlineDelta - 1))
	high := uint32(delta >> constants.DeltaBits)

	o.PutU32(buf[offset:offset+4], headerWord(o, low, constants.LenFieldTimeExtend))
	o.PutU32(buf[offset+4:offset+8], high)

	return EncodeResult{TimeExtend: true, BytesWritten: 8, NewBaseTS: baseTS + delta}
}

// ErrBadFraming is returned when a caller's precomputed frame size
// disagrees with the encoder's own computed length — spec.md §4.2's
// fatal "calculation error".
var ErrBadFraming = fmt.Errorf("record framing math disagrees with encoder")

// DecodedRecord is one record recovered from a page's record stream,
// the inverse of what EncodeRecord writes.
type DecodedRecord struct {
	Timestamp  uint64
	Payload    []byte
	PayloadLen int
	RecordSize int
}

// DecodeRecordStream walks buf[:payloadBytes] as a page's record
// stream, folding TIME_EXTEND escapes into baseTS and returning the
// payload-carrying records with their reconstructed timestamps. It is
// the read-side counterpart of repeated EncodeRecord calls, used by
// the container reader to parse on-disk pages back into records.
func DecodeRecordStream(o Order, buf []byte, baseTS uint64, payloadBytes int) ([]DecodedRecord, error) {
	var out []DecodedRecord
	pos := 0

	for pos < payloadBytes {
		if pos+4 > len(buf) {
			return nil, fmt.Errorf("%w: truncated record header at offset %d", ErrBadFraming, pos)
		}
		header := o.U32(buf[pos : pos+4])

		var delta, lenField uint32
		if o.BigEndian() {
			lenField = header >> constants.DeltaBits
			delta = header & (constants.MaxInlineDelta - 1)
		} else {
			lenField = header & 0x1f
			delta = header >> 5
		}

		if lenField == constants.LenFieldTimeExtend {
			if pos+8 > len(buf) {
				return nil, fmt.Errorf("%w: truncated TIME_EXTEND at offset %d", ErrBadFraming, pos)
			}
			high := o.U32(buf[pos+4 : pos+8])
			baseTS += uint64(delta) | (uint64(high) << constants.DeltaBits)
			pos += 8
			continue
		}

		headerSize := 4
		var payloadSize int
		if lenField == constants.LenFieldExplicit {
			if pos+8 > len(buf) {
				return nil, fmt.Errorf("%w: truncated explicit length at offset %d", ErrBadFraming, pos)
			}
			payloadSize = int(o.U32(buf[pos+4:pos+8])) - 4
			headerSize = 8
		} else {
			payloadSize = int(lenField) * 4
		}

		padded := (payloadSize + 3) &^ 3
		payloadStart := pos + headerSize
		if payloadStart+padded > len(buf) {
			return nil, fmt.Errorf("%w: truncated payload at offset %d", ErrBadFraming, pos)
		}

		ts := baseTS + uint64(delta)
		baseTS = ts

		out = append(out, DecodedRecord{
			Timestamp:  ts,
			Payload:    buf[payloadStart : payloadStart+payloadSize : payloadStart+payloadSize],
			PayloadLen: payloadSize,
			RecordSize: headerSize + padded,
		})

		pos += headerSize + padded
	}

	return out, nil
}
