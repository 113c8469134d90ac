package models

import "github.com/shopspring/decimal"

// BalanceView is what members and the admin API see for a single account.
// A member without a ledger entry is reported with zero balance and donations.
type BalanceView struct {
	MemberID     int64           `json:"memberId,string"`
	Balance      decimal.Decimal `json:"balance"`
	Donations    decimal.Decimal `json:"donations"`
	Organization string          `json:"organization,omitempty"`
	Blacklisted  bool            `json:"blacklisted"`
}

// OrganizationView is the read projection of an organization balance.
type OrganizationView struct {
	Name    string          `json:"name"`
	Tag     string          `json:"tag,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

// AccountRank is a single leaderboard row for members.
type AccountRank struct {
	MemberID int64           `json:"memberId,string"`
	Balance  decimal.Decimal `json:"balance"`
}

// OrganizationRank is a single leaderboard row for organizations.
type OrganizationRank struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// DonorRank is a single row of an organization's donors leaderboard.
type DonorRank struct {
	MemberID  int64           `json:"memberId,string"`
	Donations decimal.Decimal `json:"donations"`
}

// AccountLeaderboard and OrganizationLeaderboard wrap the ranked rows so they can be
// cached as a single value.
type AccountLeaderboard struct {
	Entries []AccountRank `json:"entries"`
}

type OrganizationLeaderboard struct {
	Entries []OrganizationRank `json:"entries"`
}

type DonorLeaderboard struct {
	Entries []DonorRank `json:"entries"`
}
