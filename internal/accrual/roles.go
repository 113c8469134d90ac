package accrual

import (
	"context"
	"slices"

	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/shopspring/decimal"
)

// RoleBonus pays a one-off bonus when a member gains one of the special roles.
type RoleBonus struct {
	bonuses  map[int64]decimal.Decimal
	crediter Crediter
}

func NewRoleBonus(bonuses map[int64]decimal.Decimal, crediter Crediter) *RoleBonus {
	return &RoleBonus{bonuses: bonuses, crediter: crediter}
}

// OnRolesChanged credits the sum of the bonuses of every special role present in
// after but not in before. Returns the credited amount.
func (b *RoleBonus) OnRolesChanged(ctx context.Context, memberID int64, before, after []int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, role := range GainedRoles(before, after) {
		if bonus, ok := b.bonuses[role]; ok {
			total = total.Add(bonus)
		}
	}
	if !total.IsPositive() {
		return decimal.Zero, nil
	}

	result, err := b.crediter.Accrue(ctx, cqrs.AccrueCommand{
		Credits: []models.Credit{{MemberID: memberID, Amount: total}},
		Reason:  ReasonRole,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(result.Skipped) > 0 {
		return decimal.Zero, nil
	}
	return total, nil
}

// GainedRoles returns the roles of after missing from before, deduplicated.
func GainedRoles(before, after []int64) []int64 {
	var gained []int64
	for _, r := range after {
		if !slices.Contains(before, r) && !slices.Contains(gained, r) {
			gained = append(gained, r)
		}
	}
	return gained
}
