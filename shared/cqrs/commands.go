package cqrs

import (
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/shopspring/decimal"
)

type SetBalanceCommand struct {
	MemberID int64
	Amount   decimal.Decimal
}

// AddToBalanceCommand is the administrative credit/debit primitive. Delta may be negative.
type AddToBalanceCommand struct {
	MemberID int64
	Delta    decimal.Decimal
}

// AccrueCommand credits a batch of members in one transaction. Blacklisted members are skipped.
type AccrueCommand struct {
	Credits []models.Credit
	Reason  string
}

type SetOrganizationBalanceCommand struct {
	Name   string
	Amount decimal.Decimal
}

type BlacklistCommand struct {
	MemberID    int64
	Blacklisted bool
}

type BlacklistMembersCommand struct {
	MemberIDs   []int64
	Blacklisted bool
}

// PayCommand moves coins between two members. Privileged callers bypass the payments toggle.
type PayCommand struct {
	SenderID   int64
	ReceiverID int64
	Amount     decimal.Decimal
	Privileged bool
}

type DepositCommand struct {
	SenderID   int64
	Amount     decimal.Decimal
	Privileged bool
}

// PurchaseServiceCommand buys a catalog service for a member. Force grants the service
// without debiting.
type PurchaseServiceCommand struct {
	GuildID int64
	Service string
	BuyerID int64
	Force   bool
}

// PurchaseOrganizationServiceCommand buys an organization service, debiting the
// buyer's organization.
type PurchaseOrganizationServiceCommand struct {
	GuildID int64
	Service string
	BuyerID int64
	Force   bool
}

type CreateOrganizationCommand struct {
	Name       string
	Tag        string
	CategoryID int64
	RoleID     int64
	Faction    string
}

type JoinOrganizationCommand struct {
	MemberID     int64
	Organization string
}

// UpdateTogglesCommand changes the runtime toggles. Nil fields are left untouched.
type UpdateTogglesCommand struct {
	PayEnabled     *bool
	DepositEnabled *bool
}
