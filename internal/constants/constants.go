// Package constants holds shared defaults and wire-format constants for
// trace-split: page geometry, the TLV escape values of the ring-buffer
// record header, and the commit-field flag bits.
package constants

// Default page geometry, used when a caller (or the CLI) doesn't have a
// real input trace to read these from, e.g. when fabricating fixtures.
const (
	// DefaultPageSize is the ring-buffer page size used by most 64-bit
	// kernels (4 KiB).
	DefaultPageSize = 4096

	// DefaultLongSize is the machine word size backing the commit field,
	// either 4 or 8.
	DefaultLongSize = 8
)

// TLV header layout (spec.md §4.2). len_field is packed into the 4-byte
// record header alongside the delta time; its value selects how the
// payload length is determined.
const (
	// LenFieldExplicit means a separate 4-byte length word precedes the
	// payload; used when payload size exceeds the inline-length field.
	LenFieldExplicit = 0

	// LenFieldInlineMax is the largest len_field value that encodes an
	// inline payload length (len_field * 4 bytes).
	LenFieldInlineMax = 28

	// LenFieldTimeExtend marks a TIME_EXTEND escape record: no payload,
	// delta's high bits follow in a trailing 4-byte word.
	LenFieldTimeExtend = 30

	// DeltaBits is the width of the inline delta-time field packed into
	// the header word alongside len_field.
	DeltaBits = 27

	// MaxInlineDelta is the largest delta that fits without a
	// TIME_EXTEND escape. A delta strictly greater than this value
	// forces the encoder to emit TIME_EXTEND first.
	MaxInlineDelta = 1 << DeltaBits
)

// Commit field flags, OR'd into the top bits of the per-page commit word.
const (
	// MissingEvents marks that the kernel dropped events before this
	// page's first record.
	MissingEvents = 1 << 31

	// MissingStored marks that the exact dropped-event count is stored
	// as an 8-byte word immediately after the page's record stream.
	MissingStored = 1 << 30
)

// HeaderBytes returns the number of bytes consumed by a page's fixed
// header (8-byte base timestamp + the commit slot) for the given long
// size (4 or 8).
func HeaderBytes(longSize int) int {
	if longSize == 8 {
		return 16
	}
	return 12
}
