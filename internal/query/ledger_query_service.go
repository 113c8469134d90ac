package query

import (
	"context"
	"errors"

	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/shopspring/decimal"
)

type LedgerQueryService struct {
	readRepo *repository.LedgerReadRepository
}

func NewLedgerQueryService(readRepo *repository.LedgerReadRepository) *LedgerQueryService {
	return &LedgerQueryService{readRepo: readRepo}
}

// GetBalance never fails for unknown members: they have a zero balance and no donations.
func (s *LedgerQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (*models.BalanceView, error) {
	account, err := s.readRepo.GetAccount(ctx, q.MemberID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.BalanceView{MemberID: q.MemberID, Balance: decimal.Zero, Donations: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}

	view := &models.BalanceView{
		MemberID:    account.MemberID,
		Balance:     account.Balance,
		Donations:   account.OrganizationDonations,
		Blacklisted: account.Blacklisted,
	}
	if account.HasOrganization() {
		view.Organization = *account.OrganizationName
	}
	return view, nil
}

// GetOrganizationBalance reports a zero balance for unknown organizations.
func (s *LedgerQueryService) GetOrganizationBalance(ctx context.Context, q cqrs.GetOrganizationBalanceQuery) (*models.OrganizationView, error) {
	name := utils.NormalizeName(q.Name)
	org, err := s.readRepo.GetOrganization(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.OrganizationView{Name: name, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.OrganizationView{Name: org.Name, Tag: org.Tag, Balance: org.Balance}, nil
}

func (s *LedgerQueryService) TopAccounts(ctx context.Context, q cqrs.TopAccountsQuery) (*models.AccountLeaderboard, error) {
	return s.readRepo.TopAccounts(ctx, cqrs.NormalizeLimit(q.Limit))
}

func (s *LedgerQueryService) TopOrganizations(ctx context.Context, q cqrs.TopOrganizationsQuery) (*models.OrganizationLeaderboard, error) {
	return s.readRepo.TopOrganizations(ctx, cqrs.NormalizeLimit(q.Limit))
}

func (s *LedgerQueryService) TopDonors(ctx context.Context, q cqrs.TopDonorsQuery) (*models.DonorLeaderboard, error) {
	return s.readRepo.TopDonors(ctx, utils.NormalizeName(q.Organization), cqrs.NormalizeLimit(q.Limit))
}
