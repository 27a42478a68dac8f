package pacer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

func TestResolveSafetyTimer(t *testing.T) {
	t.Parallel()

	assert.False(t, ResolveSafetyTimer("", false, 0))
	assert.False(t, ResolveSafetyTimer("", false, 4*units.GiB))
	assert.True(t, ResolveSafetyTimer("", false, 4*units.GiB-1))
	assert.True(t, ResolveSafetyTimer("", true, 0))
	assert.False(t, ResolveSafetyTimer("0", true, units.GiB))
	assert.True(t, ResolveSafetyTimer("1", false, 0))
	assert.False(t, ResolveSafetyTimer("true", false, 16*units.GiB))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "eden", KindEden.String())
	assert.Equal(t, "full", KindFull.String())
	assert.Equal(t, "idle_reclaim", KindIdleReclaim.String())
	assert.Equal(t, "unknown", Kind(42).String())
	assert.True(t, KindIdleReclaim.Major())
	assert.False(t, KindEden.Major())
}

func TestTuning_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.EdenAggressiveDelay = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDelay)

	bad = DefaultTuning()
	bad.GrowthRatio = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRatio)
}
