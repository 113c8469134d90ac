package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
	"github.com/shopspring/decimal"
)

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// LedgerCommandService performs every balance mutation. Each call runs in exactly
// one transaction; events are published after the commit and never roll it back.
type LedgerCommandService struct {
	db        *repository.DB
	economy   *config.Economy
	toggles   *config.ToggleStore
	publisher EventPublisher
}

// NewLedgerCommandService wires the service. publisher may be nil.
func NewLedgerCommandService(
	db *repository.DB,
	economy *config.Economy,
	toggles *config.ToggleStore,
	publisher EventPublisher,
) *LedgerCommandService {
	if toggles == nil {
		toggles = config.NewToggleStore(config.Toggles{PayEnabled: true, DepositEnabled: true}, nil)
	}
	return &LedgerCommandService{
		db:        db,
		economy:   economy,
		toggles:   toggles,
		publisher: publisher,
	}
}

// AccrualResult reports what a batch credit did per member.
type AccrualResult struct {
	Credited []int64
	Created  []int64
	Skipped  []int64
	Total    decimal.Decimal
}

type PaymentResult struct {
	SenderBalance   decimal.Decimal
	ReceiverBalance decimal.Decimal
}

type DepositResult struct {
	Organization        string
	SenderBalance       decimal.Decimal
	Donations           decimal.Decimal
	OrganizationBalance decimal.Decimal
}

func (s *LedgerCommandService) SetBalance(ctx context.Context, cmd cqrs.SetBalanceCommand) (*models.Account, error) {
	var account *models.Account
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		var err error
		account, _, err = tx.FindOrCreateAccount(ctx, cmd.MemberID, cmd.Amount)
		if err != nil {
			return err
		}
		account.Balance = cmd.Amount
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.BalanceSet, events.BalanceSetEvent{
		MemberID: cmd.MemberID,
		Balance:  account.Balance,
	})
	return account, nil
}

// AddToBalance credits (or debits, with a negative delta) a member and returns the
// new balance. Negative results are allowed.
func (s *LedgerCommandService) AddToBalance(ctx context.Context, cmd cqrs.AddToBalanceCommand) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		account, created, err := tx.FindOrCreateAccount(ctx, cmd.MemberID, cmd.Delta)
		if err != nil {
			return err
		}
		if !created {
			account.Balance = account.Balance.Add(cmd.Delta)
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
		}
		balance = account.Balance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.BalanceUpdated, events.BalanceUpdatedEvent{
		MemberID:   cmd.MemberID,
		NewBalance: balance,
		Change:     cmd.Delta,
	})
	return balance, nil
}

// Accrue credits a batch of members in a single transaction. Credits for the same
// member are summed, blacklisted members are skipped and unknown members are
// created with the credited amount as their balance.
func (s *LedgerCommandService) Accrue(ctx context.Context, cmd cqrs.AccrueCommand) (*AccrualResult, error) {
	totals := make(map[int64]decimal.Decimal, len(cmd.Credits))
	for _, c := range cmd.Credits {
		if c.Amount.IsNegative() {
			return nil, fmt.Errorf("credit for %d: %w", c.MemberID, ErrInvalidAmount)
		}
		if c.Amount.IsZero() {
			continue
		}
		totals[c.MemberID] = totals[c.MemberID].Add(c.Amount)
	}

	result := &AccrualResult{Total: decimal.Zero}
	if len(totals) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		result.Credited, result.Created, result.Skipped = nil, nil, nil
		result.Total = decimal.Zero

		for _, id := range ids {
			amount := totals[id]
			account, created, err := tx.FindOrCreateAccount(ctx, id, amount)
			switch {
			case err != nil:
				return err
			case created:
				result.Created = append(result.Created, id)
			case account.Blacklisted:
				result.Skipped = append(result.Skipped, id)
				continue
			default:
				account.Balance = account.Balance.Add(amount)
				if err := tx.SaveAccount(ctx, account); err != nil {
					return err
				}
			}
			result.Credited = append(result.Credited, id)
			result.Total = result.Total.Add(amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.AccrualApplied, events.AccrualAppliedEvent{
		Reason:   cmd.Reason,
		Credited: len(result.Credited),
		Skipped:  len(result.Skipped),
		Total:    result.Total,
	})
	return result, nil
}

// SetOrganizationBalance fails with repository.ErrNotFound for unknown organizations.
func (s *LedgerCommandService) SetOrganizationBalance(ctx context.Context, cmd cqrs.SetOrganizationBalanceCommand) error {
	name := utils.NormalizeName(cmd.Name)
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		if _, err := tx.FindOrganization(ctx, name); err != nil {
			return err
		}
		return tx.SaveOrganizationBalance(ctx, name, cmd.Amount)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.LedgerEventsStream, events.OrganizationBalanceSet, events.OrganizationBalanceSetEvent{
		Organization: name,
		Balance:      cmd.Amount,
	})
	return nil
}

func (s *LedgerCommandService) Blacklist(ctx context.Context, cmd cqrs.BlacklistCommand) error {
	_, err := s.BlacklistMembers(ctx, cqrs.BlacklistMembersCommand{
		MemberIDs:   []int64{cmd.MemberID},
		Blacklisted: cmd.Blacklisted,
	})
	return err
}

// BlacklistMembers sets the flag for every member in one transaction and returns
// how many distinct members were updated.
func (s *LedgerCommandService) BlacklistMembers(ctx context.Context, cmd cqrs.BlacklistMembersCommand) (int, error) {
	ids := utils.SortedUnique(cmd.MemberIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		for _, id := range ids {
			if err := tx.SetBlacklisted(ctx, id, cmd.Blacklisted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.BlacklistUpdated, events.BlacklistUpdatedEvent{
		MemberIDs:   ids,
		Blacklisted: cmd.Blacklisted,
	})
	return len(ids), nil
}

// Pay moves amount from sender to receiver. The receiver is created when missing;
// a missing sender has insufficient funds. Rows are locked in ascending member id order.
func (s *LedgerCommandService) Pay(ctx context.Context, cmd cqrs.PayCommand) (*PaymentResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if cmd.SenderID == cmd.ReceiverID {
		return nil, ErrSelfPayment
	}
	if !cmd.Privileged && !s.toggles.Snapshot().PayEnabled {
		return nil, ErrPaymentsDisabled
	}

	result := &PaymentResult{}
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		var sender, receiver *models.Account
		for _, id := range []int64{min(cmd.SenderID, cmd.ReceiverID), max(cmd.SenderID, cmd.ReceiverID)} {
			if id == cmd.SenderID {
				account, err := tx.FindAccount(ctx, id)
				if errors.Is(err, repository.ErrNotFound) {
					return ErrInsufficientFunds
				}
				if err != nil {
					return err
				}
				sender = account
				continue
			}
			account, _, err := tx.FindOrCreateAccount(ctx, id, decimal.Zero)
			if err != nil {
				return err
			}
			receiver = account
		}

		if sender.Blacklisted || receiver.Blacklisted {
			return ErrBlacklisted
		}
		if sender.Balance.LessThan(cmd.Amount) {
			return ErrInsufficientFunds
		}

		sender.Balance = sender.Balance.Sub(cmd.Amount)
		receiver.Balance = receiver.Balance.Add(cmd.Amount)
		if err := tx.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, receiver); err != nil {
			return err
		}
		result.SenderBalance = sender.Balance
		result.ReceiverBalance = receiver.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.PaymentCompleted, events.PaymentCompletedEvent{
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Amount:     cmd.Amount,
	})
	return result, nil
}

// DepositToOrganization moves amount from the sender to their organization and
// records it as a donation.
func (s *LedgerCommandService) DepositToOrganization(ctx context.Context, cmd cqrs.DepositCommand) (*DepositResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !cmd.Privileged && !s.toggles.Snapshot().DepositEnabled {
		return nil, ErrDepositsDisabled
	}

	result := &DepositResult{}
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		account, err := tx.FindAccount(ctx, cmd.SenderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if account.Blacklisted {
			return ErrBlacklisted
		}
		if !account.HasOrganization() {
			return ErrNoOrganization
		}
		if account.Balance.LessThan(cmd.Amount) {
			return ErrInsufficientFunds
		}

		// Accounts are always locked before organizations.
		org, err := tx.FindOrganization(ctx, *account.OrganizationName)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoOrganization
		}
		if err != nil {
			return err
		}

		account.Balance = account.Balance.Sub(cmd.Amount)
		account.OrganizationDonations = account.OrganizationDonations.Add(cmd.Amount)
		org.Balance = org.Balance.Add(cmd.Amount)

		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.SaveOrganizationBalance(ctx, org.Name, org.Balance); err != nil {
			return err
		}

		result.Organization = org.Name
		result.SenderBalance = account.Balance
		result.Donations = account.OrganizationDonations
		result.OrganizationBalance = org.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.LedgerEventsStream, events.DepositCompleted, events.DepositCompletedEvent{
		MemberID:     cmd.SenderID,
		Organization: result.Organization,
		Amount:       cmd.Amount,
	})
	return result, nil
}

// CreateOrganization registers a new organization with a zero balance.
func (s *LedgerCommandService) CreateOrganization(ctx context.Context, cmd cqrs.CreateOrganizationCommand) (*models.Organization, error) {
	org := &models.Organization{
		Name:       utils.NormalizeName(cmd.Name),
		Tag:        cmd.Tag,
		CategoryID: cmd.CategoryID,
		RoleID:     cmd.RoleID,
		Balance:    decimal.Zero,
	}
	if org.Name == "" || len([]rune(org.Name)) > 50 {
		return nil, fmt.Errorf("organization name must be 1-50 characters")
	}
	if n := len([]rune(org.Tag)); n == 0 || n > 4 {
		return nil, fmt.Errorf("organization tag must be 1-4 characters")
	}
	if cmd.Faction != "" {
		org.Faction = &cmd.Faction
	}

	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		return tx.CreateOrganization(ctx, org)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// JoinOrganization affiliates a member with an existing organization. An empty
// organization name clears the affiliation.
func (s *LedgerCommandService) JoinOrganization(ctx context.Context, cmd cqrs.JoinOrganizationCommand) error {
	name := utils.NormalizeName(cmd.Organization)
	return s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		if name == "" {
			return tx.SetAccountOrganization(ctx, cmd.MemberID, nil)
		}
		if _, err := tx.FindOrganization(ctx, name); err != nil {
			return err
		}
		return tx.SetAccountOrganization(ctx, cmd.MemberID, &name)
	})
}

// UpdateToggles is the single writer of the runtime toggles.
func (s *LedgerCommandService) UpdateToggles(ctx context.Context, cmd cqrs.UpdateTogglesCommand) (config.Toggles, error) {
	return s.toggles.Update(ctx, func(t *config.Toggles) {
		if cmd.PayEnabled != nil {
			t.PayEnabled = *cmd.PayEnabled
		}
		if cmd.DepositEnabled != nil {
			t.DepositEnabled = *cmd.DepositEnabled
		}
	})
}

// TogglePayments flips the payments switch and returns its new state.
func (s *LedgerCommandService) TogglePayments(ctx context.Context) (bool, error) {
	t, err := s.toggles.Update(ctx, func(t *config.Toggles) { t.PayEnabled = !t.PayEnabled })
	return t.PayEnabled, err
}

// ToggleDeposits flips the deposits switch and returns its new state.
func (s *LedgerCommandService) ToggleDeposits(ctx context.Context) (bool, error) {
	t, err := s.toggles.Update(ctx, func(t *config.Toggles) { t.DepositEnabled = !t.DepositEnabled })
	return t.DepositEnabled, err
}

func (s *LedgerCommandService) Toggles() config.Toggles {
	return s.toggles.Snapshot()
}

func (s *LedgerCommandService) publish(ctx context.Context, stream, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, stream, eventType, data); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "stream", stream, "type", eventType, "error", err)
	}
}
