package accrual

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGainedRoles(t *testing.T) {
	assert.Equal(t, []int64{3, 4}, GainedRoles([]int64{1, 2}, []int64{1, 3, 4, 3}))
	assert.Empty(t, GainedRoles([]int64{1, 2}, []int64{2}))
	assert.Equal(t, []int64{5}, GainedRoles(nil, []int64{5}))
}

func TestRoleBonus_OnRolesChanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bonus := NewRoleBonus(map[int64]decimal.Decimal{
		100: decimal.NewFromInt(10),
		200: decimal.NewFromInt(25),
	}, env.svc)

	total, err := bonus.OnRolesChanged(ctx, 1, []int64{1}, []int64{1, 100, 200, 300})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(35)))
	assert.True(t, env.balance(t, 1).Equal(decimal.NewFromInt(35)))

	// Already held roles pay nothing.
	total, err = bonus.OnRolesChanged(ctx, 1, []int64{1, 100, 200}, []int64{1, 100, 200})
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, err = bonus.OnRolesChanged(ctx, 2, nil, []int64{300})
	require.NoError(t, err)
	assert.True(t, total.IsZero())
	assert.True(t, env.balance(t, 1).Equal(decimal.NewFromInt(35)))
}
