// Package wire implements the capture's on-disk number encoding and the
// record header's Type-Length-Time packing (spec.md §4.1, §4.2).
//
// All on-wire integers pass through this package; callers never touch
// host byte order directly.
package wire

import "encoding/binary"

// Order selects the capture's declared byte order. It is a thin wrapper
// over encoding/binary's ByteOrder so call sites read naturally (
// wire.NewOrder(bigEndian).PutU32(...)) instead of branching on a bool
// everywhere the codec is used.
type Order struct {
	bo  binary.ByteOrder
	big bool
}

// NewOrder returns the codec for a capture's declared endianness.
func NewOrder(bigEndian bool) Order {
	if bigEndian {
		return Order{bo: binary.BigEndian, big: true}
	}
	return Order{bo: binary.LittleEndian, big: false}
}

// PutU32 writes v into buf[0:4] in the capture's byte order.
func (o Order) PutU32(buf []byte, v uint32) {
	o.bo.PutUint32(buf, v)
}

// U32 reads a uint32 from buf[0:4] in the capture's byte order.
func (o Order) U32(buf []byte) uint32 {
	return o.bo.Uint32(buf)
}

// PutU64 writes v into buf[0:8] in the capture's byte order.
func (o Order) PutU64(buf []byte, v uint64) {
	o.bo.PutUint64(buf, v)
}

// U64 reads a uint64 from buf[0:8] in the capture's byte order.
func (o Order) U64(buf []byte) uint64 {
	return o.bo.Uint64(buf)
}

// BigEndian reports whether this codec encodes in big-endian order.
func (o Order) BigEndian() bool {
	return o.big
}
