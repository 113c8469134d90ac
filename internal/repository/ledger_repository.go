package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/shopspring/decimal"
)

// LedgerTx handles all write operations for accounts and organizations. It is only
// valid inside DB.WithTx; rows returned by Find* stay locked until the transaction ends.
type LedgerTx struct {
	tx     *sql.Tx
	driver string
}

const accountColumns = `member_id, balance, blacklisted, organization_name, organization_donations, created_at, updated_at`

const organizationColumns = `name, tag, category_id, role_id, faction, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account models.Account
		org     sql.NullString
	)
	err := row.Scan(
		&account.MemberID, &account.Balance, &account.Blacklisted, &org,
		&account.OrganizationDonations, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if org.Valid {
		account.OrganizationName = &org.String
	}
	return &account, nil
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org     models.Organization
		faction sql.NullString
	)
	err := row.Scan(
		&org.Name, &org.Tag, &org.CategoryID, &org.RoleID, &faction,
		&org.Balance, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if faction.Valid {
		org.Faction = &faction.String
	}
	return &org, nil
}

func (r *LedgerTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.tx.ExecContext(ctx, rebind(r.driver, query), args...)
}

func (r *LedgerTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.tx.QueryRowContext(ctx, rebind(r.driver, query), args...)
}

// FindAccount locks and returns the account of memberID.
func (r *LedgerTx) FindAccount(ctx context.Context, memberID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE member_id = $1` + forUpdate(r.driver)
	account, err := scanAccount(r.queryRow(ctx, query, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", memberID, err)
	}
	return account, nil
}

// FindOrCreateAccount locks the account of memberID, inserting it with the given
// initial balance first when it does not exist. created reports whether the insert happened.
func (r *LedgerTx) FindOrCreateAccount(ctx context.Context, memberID int64, initial decimal.Decimal) (account *models.Account, created bool, err error) {
	now := time.Now().UTC()
	res, err := r.exec(ctx, `
		INSERT INTO accounts (member_id, balance, blacklisted, organization_donations, created_at, updated_at)
		VALUES ($1, $2, FALSE, 0, $3, $3)
		ON CONFLICT (member_id) DO NOTHING
	`, memberID, initial, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create account %d: %w", memberID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to create account %d: %w", memberID, err)
	}

	account, err = r.FindAccount(ctx, memberID)
	if err != nil {
		return nil, false, err
	}
	return account, rows == 1, nil
}

// SaveAccount persists the balance and donations of a previously loaded account.
func (r *LedgerTx) SaveAccount(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	res, err := r.exec(ctx, `
		UPDATE accounts
		SET balance = $1, organization_donations = $2, updated_at = $3
		WHERE member_id = $4
	`, account.Balance, account.OrganizationDonations, account.UpdatedAt, account.MemberID)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", account.MemberID, err)
	}
	return expectOneRow(res)
}

// SetBlacklisted upserts the flag, leaving the balance of an existing account untouched.
func (r *LedgerTx) SetBlacklisted(ctx context.Context, memberID int64, blacklisted bool) error {
	now := time.Now().UTC()
	_, err := r.exec(ctx, `
		INSERT INTO accounts (member_id, balance, blacklisted, organization_donations, created_at, updated_at)
		VALUES ($1, 0, $2, 0, $3, $3)
		ON CONFLICT (member_id) DO UPDATE SET blacklisted = excluded.blacklisted, updated_at = excluded.updated_at
	`, memberID, blacklisted, now)
	if err != nil {
		return fmt.Errorf("failed to set blacklist flag for %d: %w", memberID, err)
	}
	return nil
}

// SetAccountOrganization affiliates memberID with organization, or clears the
// affiliation when organization is nil.
func (r *LedgerTx) SetAccountOrganization(ctx context.Context, memberID int64, organization *string) error {
	now := time.Now().UTC()
	var org sql.NullString
	if organization != nil {
		org = sql.NullString{String: *organization, Valid: true}
	}
	_, err := r.exec(ctx, `
		INSERT INTO accounts (member_id, balance, blacklisted, organization_name, organization_donations, created_at, updated_at)
		VALUES ($1, 0, FALSE, $2, 0, $3, $3)
		ON CONFLICT (member_id) DO UPDATE SET organization_name = excluded.organization_name, updated_at = excluded.updated_at
	`, memberID, org, now)
	if err != nil {
		return fmt.Errorf("failed to set organization for %d: %w", memberID, err)
	}
	return nil
}

// FindOrganization locks and returns the organization called name.
func (r *LedgerTx) FindOrganization(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE name = $1` + forUpdate(r.driver)
	org, err := scanOrganization(r.queryRow(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %q: %w", name, err)
	}
	return org, nil
}

func (r *LedgerTx) SaveOrganizationBalance(ctx context.Context, name string, balance decimal.Decimal) error {
	res, err := r.exec(ctx, `
		UPDATE organizations SET balance = $1, updated_at = $2 WHERE name = $3
	`, balance, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update organization %q: %w", name, err)
	}
	return expectOneRow(res)
}

// CreateOrganization inserts org. Name and tag must both be unused.
func (r *LedgerTx) CreateOrganization(ctx context.Context, org *models.Organization) error {
	var taken int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM organizations WHERE name = $1 OR tag = $2`, org.Name, org.Tag).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check organization %q: %w", org.Name, err)
	}
	if taken > 0 {
		return fmt.Errorf("organization %q or tag %q: %w", org.Name, org.Tag, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now
	var faction sql.NullString
	if org.Faction != nil {
		faction = sql.NullString{String: *org.Faction, Valid: true}
	}
	_, err = r.exec(ctx, `
		INSERT INTO organizations (name, tag, category_id, role_id, faction, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, org.Name, org.Tag, org.CategoryID, org.RoleID, faction, org.Balance, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization %q: %w", org.Name, err)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
