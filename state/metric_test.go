package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricAdd(t *testing.T) {
	assert.Equal(t, Finite(7), Finite(3).Add(Finite(4)))
	assert.Equal(t, Unreachable, Finite(3).Add(Unreachable))
	assert.Equal(t, Unreachable, Unreachable.Add(Finite(3)))

	// saturates below the unreachable sentinel
	big := Finite(math.MaxUint32)
	sum := big.Add(big)
	assert.False(t, sum.IsUnreachable())
	cost, ok := sum.Cost()
	assert.True(t, ok)
	assert.Equal(t, uint32(math.MaxUint32-1), cost)
}

func TestMetricLess(t *testing.T) {
	assert.True(t, Finite(1).Less(Finite(2)))
	assert.False(t, Finite(2).Less(Finite(2)))
	assert.True(t, Finite(math.MaxUint32).Less(Unreachable))
	assert.False(t, Unreachable.Less(Unreachable))
	assert.False(t, Unreachable.Less(Finite(0)))
}

func TestMetricCapped(t *testing.T) {
	assert.Equal(t, Finite(15), Finite(15).Capped(16))
	assert.Equal(t, Unreachable, Finite(16).Capped(16))
	assert.Equal(t, Unreachable, Unreachable.Capped(16))
	assert.Equal(t, "inf", Finite(20).Capped(16).String())
	assert.Equal(t, "15", Finite(15).String())
}
