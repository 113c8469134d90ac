package command

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSelfPayment       = errors.New("cannot pay yourself")
	ErrPaymentsDisabled  = errors.New("payments are disabled")
	ErrDepositsDisabled  = errors.New("deposits are disabled")
	ErrBlacklisted       = errors.New("member is blacklisted")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoOrganization    = errors.New("member is not part of an organization")
	ErrServiceNotFound   = errors.New("service not found")

	// ErrPurchaseNotQueued means the purchase could not be handed to provisioning.
	// Any debit has been refunded.
	ErrPurchaseNotQueued = errors.New("purchase could not be queued for provisioning")
	ErrRefundFailed      = errors.New("refund failed")
)
