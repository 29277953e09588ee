package launchpad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/model"
)

func schedule(total uint64, start int64) model.VestingSchedule {
	return model.VestingSchedule{
		ID:          "v1",
		TotalAmount: total,
		StartTime:   start,
		Cliff:       DefaultCliff,
		Duration:    DefaultDuration,
	}
}

func TestVestedAmountBoundaries(t *testing.T) {
	const start = 1_000_000
	v := schedule(50_000, start)

	tests := []struct {
		name string
		now  int64
		want uint64
	}{
		{"before start", start - 1, 0},
		{"at start", start, 0},
		{"one second in", start + 1, 0},
		{"at cliff", start + DefaultCliff, 8_333},
		{"half", start + DefaultDuration/2, 25_000},
		{"one second short", start + DefaultDuration - 1, 49_999},
		{"exactly duration", start + DefaultDuration, 50_000},
		{"long after", start + 10*DefaultDuration, 50_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VestedAmount(v, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVestedAmountWideIntermediate(t *testing.T) {
	v := schedule(math.MaxUint64, 0)
	got, err := VestedAmount(v, DefaultDuration/2)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), got)
}

func TestPlanClaim(t *testing.T) {
	const start = 1_000_000
	v := schedule(50_000, start)

	_, err := PlanClaim(v, start+DefaultCliff-1)
	assert.ErrorIs(t, err, ErrCliffNotReached)

	amount, err := PlanClaim(v, start+DefaultDuration/2)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000), amount)

	v.ClaimedAmount = 25_000
	_, err = PlanClaim(v, start+DefaultDuration/2)
	assert.ErrorIs(t, err, ErrNoTokensToClaim)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindEmptyClaim, kind)
}

func TestPlanClaimOverflowingCliff(t *testing.T) {
	v := schedule(10, math.MaxInt64-1)
	_, err := PlanClaim(v, math.MaxInt64)
	assert.ErrorIs(t, err, ErrNumberOverflow)
}

func TestStateAt(t *testing.T) {
	const start = 1_000_000
	v := schedule(50_000, start)

	cases := []struct {
		now     int64
		claimed uint64
		want    State
	}{
		{start, 0, StateLocked},
		{start + DefaultCliff - 1, 0, StateLocked},
		{start + DefaultCliff, 0, StateUnlocking},
		{start + DefaultDuration, 0, StateFullyVested},
		{start + DefaultDuration, 50_000, StateExhausted},
	}
	for _, c := range cases {
		v.ClaimedAmount = c.claimed
		got, err := StateAt(v, c.now)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "now=%d claimed=%d", c.now, c.claimed)
	}
}

func TestStatusAtHidesClaimableWhileLocked(t *testing.T) {
	const start = 1_000_000
	v := schedule(50_000, start)

	st, err := StatusAt(v, start+DefaultCliff-1)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st.State)
	assert.NotZero(t, st.Vested)
	assert.Zero(t, st.Claimable)
	assert.Equal(t, int64(start+DefaultCliff), st.CliffTime)
}
