package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderRoundTripLittleEndian(t *testing.T) {
	o := NewOrder(false)
	buf := make([]byte, 8)

	o.PutU32(buf, 0x01020304)
	assert.EqualValues(t, 0x01020304, o.U32(buf))
	assert.Equal(t, byte(0x04), buf[0])
	assert.Equal(t, byte(0x01), buf[3])

	o.PutU64(buf, 0x0102030405060708)
	assert.EqualValues(t, 0x0102030405060708, o.U64(buf))
}

func TestOrderRoundTripBigEndian(t *testing.T) {
	o := NewOrder(true)
	buf := make([]byte, 8)

	o.PutU32(buf, 0x01020304)
	assert.EqualValues(t, 0x01020304, o.U32(buf))
	assert.Equal(t, byte(0x01), buf[0])
	assert.Equal(t, byte(0x04), buf[3])
}

func TestOrderBigEndianFlag(t *testing.T) {
	assert.True(t, NewOrder(true).BigEndian())
	assert.False(t, NewOrder(false).BigEndian())
}
