package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityPolicy(t *testing.T) {
	p := hourly()
	require.NoError(t, p.Validate())
	assert.Equal(t, 1, p.MaxConcurrentAt(5))
	assert.False(t, p.UserLimitReached(0))
	assert.True(t, p.UserLimitReached(1))
	assert.Nil(t, p.CooldownSince(base))

	p.AutomaticPerSlot = true
	p.SimultaneousPerSlot = 0
	require.NoError(t, p.Validate())
	assert.Equal(t, 5, p.MaxConcurrentAt(5))
	assert.Equal(t, 1, p.PerProfessionalCapacity())

	p.BlockAfter24Hours = true
	since := p.CooldownSince(base)
	require.NotNil(t, since)
	assert.Equal(t, base.Add(-24*time.Hour), *since)

	p.IntervalBetweenSlotsMinutes = 15
	assert.Equal(t, 75*time.Minute, p.Step())

	bad := hourly()
	bad.DurationMinutes = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
	bad = hourly()
	bad.SimultaneousPerSlot = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
	bad = hourly()
	bad.Confirmation = "sometimes"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
}
