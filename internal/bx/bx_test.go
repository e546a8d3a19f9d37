package bx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLittleEndianReadWrite(t *testing.T) {
	b := make([]byte, 2)
	var v16 uint16 = 0x1234
	PutU16(b, v16)
	assert.Equal(t, []byte{0x34, 0x12}, b)
	assert.Equal(t, v16, U16(b))

	b = make([]byte, 4)
	var v32 uint32 = 0x01020304
	PutU32(b, v32)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, v32, U32(b))

	b = make([]byte, 8)
	var v64 uint64 = 0x0102030405060708
	PutU64(b, v64)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, v64, U64(b))
}

func TestAtVariants(t *testing.T) {
	buf := make([]byte, 16)

	PutU16At(buf, 0, 0x0A0B)
	PutU32At(buf, 2, 0x01020304)
	PutU64At(buf, 6, 0x0102030405060708)

	assert.Equal(t, uint16(0x0A0B), U16At(buf, 0))
	assert.Equal(t, uint32(0x01020304), U32At(buf, 2))
	assert.Equal(t, uint64(0x0102030405060708), U64At(buf, 6))
}
