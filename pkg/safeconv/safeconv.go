// Package safeconv provides clamping numeric conversions for telemetry values
// that may arrive out of range.
package safeconv

import "math"

// MaxInt64 is the maximum value for int64.
const MaxInt64 = int64(math.MaxInt64)

// ClampToUint64 converts a signed reading to uint64, clamping negatives to zero.
func ClampToUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}

// IntToUint64 converts an int reading to uint64, clamping negatives to zero.
func IntToUint64(v int) uint64 {
	return ClampToUint64(int64(v))
}

// SafeInt64 converts uint64 to int64, clamping to MaxInt64 to prevent overflow.
func SafeInt64(v uint64) int64 {
	if v > uint64(MaxInt64) {
		return MaxInt64
	}

	return int64(v)
}

// Ratio returns num/den, or zero when den is zero.
func Ratio(num, den uint64) float64 {
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}

// IntToUint32 converts an int to uint32, clamping to [0, MaxUint32].
func IntToUint32(v int) uint32 {
	switch {
	case v < 0:
		return 0
	case uint64(v) > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
