package launchpad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckedArithmetic(t *testing.T) {
	got, err := checkedMul(500, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), got)

	_, err = checkedMul(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	_, err = checkedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	_, err = checkedSub(1, 2)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	got, err = checkedMulDiv(math.MaxUint64, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/4*3+2), got)

	_, err = checkedMulDiv(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	_, err = checkedMulDiv(1, 1, 0)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	_, err = checkedAddInt64(math.MaxInt64, 1)
	assert.ErrorIs(t, err, ErrNumberOverflow)

	_, err = checkedSubInt64(math.MinInt64, 1)
	assert.ErrorIs(t, err, ErrNumberOverflow)
}
