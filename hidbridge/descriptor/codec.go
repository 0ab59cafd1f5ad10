package descriptor

// Extract decodes the field spanning [bitOffset, bitOffset+bitSize) from
// raw report bytes into a sign-extended integer. A zero or oversized bit
// size and an empty buffer all decode to 0; bytes past the end of raw read
// as zero. None of these cases are error signals.
func Extract(raw []byte, bitOffset, bitSize uint16) int32 {
	if len(raw) == 0 || bitSize == 0 || bitSize > 32 {
		return 0
	}

	byteOffset := int(bitOffset / 8)
	bitShift := uint(bitOffset % 8)

	if bitSize == 1 {
		if byteOffset >= len(raw) {
			return 0
		}
		return int32((raw[byteOffset] >> bitShift) & 0x01)
	}

	var value uint32
	remaining := uint(bitSize)
	read := uint(0)
	for remaining > 0 {
		var cur byte
		if byteOffset < len(raw) {
			cur = raw[byteOffset]
		}

		n := 8 - bitShift
		if n > remaining {
			n = remaining
		}
		value |= ((uint32(cur) >> bitShift) & (1<<n - 1)) << read

		remaining -= n
		read += n
		byteOffset++
		bitShift = 0
	}

	// Sign extend when the field MSB is set.
	if bitSize < 32 && value&(1<<(bitSize-1)) != 0 {
		value |= ^uint32(0) << bitSize
	}
	return int32(value)
}
