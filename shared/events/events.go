package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	BalanceSet             = "balance.set"
	BalanceUpdated         = "balance.updated"
	AccrualApplied         = "accrual.applied"
	PaymentCompleted       = "payment.completed"
	DepositCompleted       = "deposit.completed"
	OrganizationBalanceSet = "organization.balance.set"
	BlacklistUpdated       = "blacklist.updated"

	ServicePurchased = "service.purchased"
)

// Stream names
const (
	LedgerEventsStream   = "coins.ledger.events"
	PurchaseEventsStream = "coins.purchase.events"
)

// Base event structure
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Ledger events
type BalanceSetEvent struct {
	MemberID int64           `json:"memberId,string"`
	Balance  decimal.Decimal `json:"balance"`
}

type BalanceUpdatedEvent struct {
	MemberID   int64           `json:"memberId,string"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Change     decimal.Decimal `json:"change"`
}

type AccrualAppliedEvent struct {
	Reason   string          `json:"reason"`
	Credited int             `json:"credited"`
	Skipped  int             `json:"skipped"`
	Total    decimal.Decimal `json:"total"`
}

type PaymentCompletedEvent struct {
	SenderID   int64           `json:"senderId,string"`
	ReceiverID int64           `json:"receiverId,string"`
	Amount     decimal.Decimal `json:"amount"`
}

type DepositCompletedEvent struct {
	MemberID     int64           `json:"memberId,string"`
	Organization string          `json:"organization"`
	Amount       decimal.Decimal `json:"amount"`
}

type OrganizationBalanceSetEvent struct {
	Organization string          `json:"organization"`
	Balance      decimal.Decimal `json:"balance"`
}

type BlacklistUpdatedEvent struct {
	MemberIDs   []int64 `json:"memberIds"`
	Blacklisted bool    `json:"blacklisted"`
}

// Purchase events

// ServicePurchasedEvent carries everything the chat side needs to provision a bought
// service. Organization is empty for member services.
type ServicePurchasedEvent struct {
	GuildID            int64           `json:"guildId,string"`
	BuyerID            int64           `json:"buyerId,string"`
	Organization       string          `json:"organization,omitempty"`
	Service            string          `json:"service"`
	Cost               decimal.Decimal `json:"cost"`
	Forced             bool            `json:"forced"`
	NotifyTo           int64           `json:"notifyTo,string"`
	PrivateChannelName string          `json:"privateChannelName,omitempty"`
	CategoryID         int64           `json:"categoryId,string,omitempty"`
	RoleToAdd          *int64          `json:"roleToAdd,string,omitempty"`
}
