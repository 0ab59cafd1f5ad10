package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// putBits writes the low size bits of v into buf starting at bitOffset,
// little-endian, the inverse of Extract.
func putBits(buf []byte, bitOffset, size uint16, v int32) {
	u := uint32(v)
	for i := uint16(0); i < size; i++ {
		bit := bitOffset + i
		if u&(1<<i) != 0 {
			buf[bit/8] |= 1 << (bit % 8)
		}
	}
}

func TestExtractZeroDefaults(t *testing.T) {
	assert.Zero(t, Extract(nil, 0, 8))
	assert.Zero(t, Extract([]byte{}, 0, 8))
	assert.Zero(t, Extract([]byte{0xFF}, 0, 0))
	assert.Zero(t, Extract([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 0, 33))
}

func TestExtractSingleBit(t *testing.T) {
	data := []byte{0b10100101}
	want := []int32{1, 0, 1, 0, 0, 1, 0, 1}
	for bit := uint16(0); bit < 8; bit++ {
		assert.Equal(t, want[bit], Extract(data, bit, 1), "bit %d", bit)
	}
	// Past the buffer reads as zero.
	assert.Zero(t, Extract(data, 8, 1))
}

func TestExtractSignExtension(t *testing.T) {
	// 8-bit value 5 at offset 0, 16-bit value 0xFF00 at offset 8.
	data := []byte{0x05, 0x00, 0xFF}
	assert.Equal(t, int32(5), Extract(data, 0, 8))
	assert.Equal(t, int32(-256), Extract(data, 8, 16))

	// Positive values keep their sign.
	assert.Equal(t, int32(0x7F), Extract([]byte{0x7F}, 0, 8))
	assert.Equal(t, int32(-1), Extract([]byte{0xFF}, 0, 8))
}

func TestExtractUnaligned(t *testing.T) {
	// 4-bit value 0xA in the high nibble: sign-extends to -6.
	assert.Equal(t, int32(-6), Extract([]byte{0b10100000}, 4, 4))
	// Low nibble stays positive.
	assert.Equal(t, int32(5), Extract([]byte{0b01010000}, 4, 4))
	// 12-bit field across a byte boundary: bits 4..15.
	data := []byte{0x50, 0x23} // 0x235 at offset 4
	assert.Equal(t, int32(0x235), Extract(data, 4, 12))
}

func TestExtractShortBuffer(t *testing.T) {
	// Missing trailing bytes read as zero, so a positive low byte stays
	// positive.
	assert.Equal(t, int32(0x42), Extract([]byte{0x42}, 0, 16))
}

func TestExtractRoundTrip(t *testing.T) {
	for size := uint16(2); size <= 32; size++ {
		min := -(int64(1) << (size - 1))
		max := int64(1)<<(size-1) - 1
		values := []int64{min, min + 1, -1, 0, 1, max - 1, max}
		for offset := uint16(0); offset <= 16; offset++ {
			for _, v := range values {
				buf := make([]byte, 8)
				putBits(buf, offset, size, int32(v))
				got := Extract(buf, offset, size)
				assert.Equal(t, int32(v), got, "size=%d offset=%d v=%d", size, offset, v)
			}
		}
	}

	// Single-bit fields decode to 0 or 1, never sign-extended.
	for offset := uint16(0); offset < 16; offset++ {
		buf := make([]byte, 2)
		putBits(buf, offset, 1, 1)
		assert.Equal(t, int32(1), Extract(buf, offset, 1))
	}
}
