package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leonardo-panseri/discord-coins/shared/models"
	sharedredis "github.com/leonardo-panseri/discord-coins/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const leaderboardKeyPrefix = "coins:leaderboard:"

// LedgerReadRepository handles all read operations. Leaderboards are served from a
// short-lived Redis projection when a client is configured and fall back to SQL.
type LedgerReadRepository struct {
	db          *DB
	accountTops *sharedredis.ViewCache[models.AccountLeaderboard]
	orgTops     *sharedredis.ViewCache[models.OrganizationLeaderboard]
	donorTops   *sharedredis.ViewCache[models.DonorLeaderboard]
}

// NewLedgerReadRepository builds a read repository. redisClient may be nil.
func NewLedgerReadRepository(db *DB, redisClient *goredis.Client, ttl time.Duration) *LedgerReadRepository {
	r := &LedgerReadRepository{db: db}
	if redisClient != nil {
		r.accountTops = sharedredis.NewViewCache[models.AccountLeaderboard](redisClient, leaderboardKeyPrefix+"accounts:", ttl)
		r.orgTops = sharedredis.NewViewCache[models.OrganizationLeaderboard](redisClient, leaderboardKeyPrefix+"organizations:", ttl)
		r.donorTops = sharedredis.NewViewCache[models.DonorLeaderboard](redisClient, leaderboardKeyPrefix+"donors:", ttl)
	}
	return r
}

func (r *LedgerReadRepository) queryRow(ctx context.Context, conn *sql.Conn, query string, args ...any) *sql.Row {
	return conn.QueryRowContext(ctx, rebind(r.db.driver, query), args...)
}

func (r *LedgerReadRepository) GetAccount(ctx context.Context, memberID int64) (*models.Account, error) {
	var account *models.Account
	err := r.db.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		account, err = scanAccount(r.queryRow(ctx, conn, `SELECT `+accountColumns+` FROM accounts WHERE member_id = $1`, memberID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", memberID, err)
	}
	return account, nil
}

func (r *LedgerReadRepository) GetOrganization(ctx context.Context, name string) (*models.Organization, error) {
	var org *models.Organization
	err := r.db.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		org, err = scanOrganization(r.queryRow(ctx, conn, `SELECT `+organizationColumns+` FROM organizations WHERE name = $1`, name))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %q: %w", name, err)
	}
	return org, nil
}

// TopAccounts returns the limit richest members, ties broken by member id.
func (r *LedgerReadRepository) TopAccounts(ctx context.Context, limit int) (*models.AccountLeaderboard, error) {
	return r.accountTops.GetOrLoad(ctx, strconv.Itoa(limit), func(ctx context.Context) (*models.AccountLeaderboard, error) {
		board := &models.AccountLeaderboard{Entries: []models.AccountRank{}}
		err := r.query(ctx, `
			SELECT member_id, balance FROM accounts
			ORDER BY balance DESC, member_id ASC
			LIMIT $1
		`, []any{limit}, func(rows *sql.Rows) error {
			var rank models.AccountRank
			if err := rows.Scan(&rank.MemberID, &rank.Balance); err != nil {
				return err
			}
			board.Entries = append(board.Entries, rank)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list top accounts: %w", err)
		}
		return board, nil
	})
}

// TopOrganizations returns the limit richest organizations, ties broken by name.
func (r *LedgerReadRepository) TopOrganizations(ctx context.Context, limit int) (*models.OrganizationLeaderboard, error) {
	return r.orgTops.GetOrLoad(ctx, strconv.Itoa(limit), func(ctx context.Context) (*models.OrganizationLeaderboard, error) {
		board := &models.OrganizationLeaderboard{Entries: []models.OrganizationRank{}}
		err := r.query(ctx, `
			SELECT name, balance FROM organizations
			ORDER BY balance DESC, name ASC
			LIMIT $1
		`, []any{limit}, func(rows *sql.Rows) error {
			var rank models.OrganizationRank
			if err := rows.Scan(&rank.Name, &rank.Balance); err != nil {
				return err
			}
			board.Entries = append(board.Entries, rank)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list top organizations: %w", err)
		}
		return board, nil
	})
}

// TopDonors returns the members of organization that donated the most to it.
// Members that never donated are left out.
func (r *LedgerReadRepository) TopDonors(ctx context.Context, organization string, limit int) (*models.DonorLeaderboard, error) {
	key := organization + ":" + strconv.Itoa(limit)
	return r.donorTops.GetOrLoad(ctx, key, func(ctx context.Context) (*models.DonorLeaderboard, error) {
		board := &models.DonorLeaderboard{Entries: []models.DonorRank{}}
		err := r.query(ctx, `
			SELECT member_id, organization_donations FROM accounts
			WHERE organization_name = $1 AND organization_donations > 0
			ORDER BY organization_donations DESC, member_id ASC
			LIMIT $2
		`, []any{organization, limit}, func(rows *sql.Rows) error {
			var rank models.DonorRank
			if err := rows.Scan(&rank.MemberID, &rank.Donations); err != nil {
				return err
			}
			board.Entries = append(board.Entries, rank)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list donors of %q: %w", organization, err)
		}
		return board, nil
	})
}

func (r *LedgerReadRepository) query(ctx context.Context, query string, args []any, each func(rows *sql.Rows) error) error {
	return r.db.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, rebind(r.db.driver, query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := each(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}
