package cqrs

// ---------- Account queries ----------

// GetBalanceQuery fetches a member's balance and donations.
type GetBalanceQuery struct {
	MemberID int64
}

// TopAccountsQuery fetches the richest members.
type TopAccountsQuery struct {
	Limit int
}

// ---------- Organization queries ----------

// GetOrganizationBalanceQuery fetches an organization's balance by name.
type GetOrganizationBalanceQuery struct {
	Name string
}

// TopOrganizationsQuery fetches the richest organizations.
type TopOrganizationsQuery struct {
	Limit int
}

// TopDonorsQuery fetches the members that donated the most to an organization.
type TopDonorsQuery struct {
	Organization string
	Limit        int
}

// DefaultLimit is used by leaderboard queries that don't specify one.
const DefaultLimit = 10

// NormalizeLimit maps non-positive limits to DefaultLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
