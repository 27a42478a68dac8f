package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), ClampToUint64(-5))
	assert.Equal(t, uint64(0), ClampToUint64(0))
	assert.Equal(t, uint64(42), ClampToUint64(42))
	assert.Equal(t, uint64(math.MaxInt64), ClampToUint64(math.MaxInt64))
}

func TestIntToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), IntToUint64(-1))
	assert.Equal(t, uint64(7), IntToUint64(7))
}

func TestSafeInt64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(10), SafeInt64(10))
	assert.Equal(t, MaxInt64, SafeInt64(math.MaxUint64))
}

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.75, Ratio(3, 4), 1e-9)
	assert.Zero(t, Ratio(3, 0))
}

func TestIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), IntToUint32(-3))
	assert.Equal(t, uint32(42), IntToUint32(42))
	assert.Equal(t, uint32(math.MaxInt32), IntToUint32(math.MaxInt32))
}
