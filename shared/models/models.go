package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a member's ledger entry. MemberID is the platform-assigned snowflake.
type Account struct {
	MemberID              int64           `json:"memberId,string"`
	Balance               decimal.Decimal `json:"balance"`
	Blacklisted           bool            `json:"blacklisted"`
	OrganizationName      *string         `json:"organization,omitempty"`
	OrganizationDonations decimal.Decimal `json:"organizationDonations"`
	CreatedAt             time.Time       `json:"createdTimestamp"`
	UpdatedAt             time.Time       `json:"updatedTimestamp"`
}

// HasOrganization reports whether the account is affiliated with an organization.
func (a *Account) HasOrganization() bool {
	return a.OrganizationName != nil && *a.OrganizationName != ""
}

// Organization is a named group with its own balance. Name is the case-sensitive key;
// callers lower-case it before lookups.
type Organization struct {
	Name       string          `json:"name"`
	Tag        string          `json:"tag"`
	CategoryID int64           `json:"categoryId,string"`
	RoleID     int64           `json:"roleId,string"`
	Faction    *string         `json:"faction,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"createdTimestamp"`
	UpdatedAt  time.Time       `json:"updatedTimestamp"`
}

// Credit is a single balance increase requested by an accrual source.
type Credit struct {
	MemberID int64
	Amount   decimal.Decimal
}

// ServiceDefinition is a purchasable entry of the service catalogs.
type ServiceDefinition struct {
	Name               string          `json:"name"`
	Cost               decimal.Decimal `json:"cost"`
	NotifyTo           int64           `json:"notifyTo,string"`
	PrivateChannelName string          `json:"privateChannelName,omitempty"`
	RoleToAdd          *int64          `json:"roleToAdd,string,omitempty"`
	Description        string          `json:"description,omitempty"`
}
