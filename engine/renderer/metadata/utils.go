package metadata

// GetAligned rounds operand up to the next multiple of granularity, which
// must be a power of two.
func GetAligned(operand, granularity uint64) uint64 {
	if granularity == 0 {
		return operand
	}
	return (operand + (granularity - 1)) &^ (granularity - 1)
}

// GetPadding is the number of bytes needed after size to reach the next
// multiple of alignment. Works for any alignment, not only powers of two.
func GetPadding(size, alignment uint64) uint64 {
	if alignment == 0 {
		return 0
	}
	return (alignment - size%alignment) % alignment
}
