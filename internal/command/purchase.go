package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/shopspring/decimal"
)

// PurchaseResult is returned by both purchase flows. Balance is the payer's balance
// after the purchase: the member for member services, the organization otherwise.
type PurchaseResult struct {
	Service      models.ServiceDefinition
	Organization string
	Balance      decimal.Decimal
	Forced       bool
}

// PurchaseService buys a member service. Forced purchases are granted without a
// debit and without creating a ledger entry. Provisioning happens asynchronously
// from the published event; when the event cannot be published the debit is
// refunded and ErrPurchaseNotQueued is returned.
func (s *LedgerCommandService) PurchaseService(ctx context.Context, cmd cqrs.PurchaseServiceCommand) (*PurchaseResult, error) {
	if s.economy == nil {
		return nil, ErrServiceNotFound
	}
	service, ok := s.economy.Service(cmd.Service)
	if !ok {
		return nil, ErrServiceNotFound
	}

	result := &PurchaseResult{Service: service, Forced: cmd.Force, Balance: decimal.Zero}
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		account, err := tx.FindAccount(ctx, cmd.BuyerID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if cmd.Force {
				return nil
			}
			return ErrInsufficientFunds
		case err != nil:
			return err
		}

		if cmd.Force {
			result.Balance = account.Balance
			return nil
		}
		if account.Balance.LessThan(service.Cost) {
			return ErrInsufficientFunds
		}
		account.Balance = account.Balance.Sub(service.Cost)
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		result.Balance = account.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.enqueuePurchase(ctx, events.ServicePurchasedEvent{
		GuildID:            cmd.GuildID,
		BuyerID:            cmd.BuyerID,
		Service:            service.Name,
		Cost:               service.Cost,
		Forced:             cmd.Force,
		NotifyTo:           service.NotifyTo,
		PrivateChannelName: service.PrivateChannelName,
		CategoryID:         s.economy.ServiceCategory,
		RoleToAdd:          service.RoleToAdd,
	})
	if err != nil {
		if cmd.Force {
			return nil, err
		}
		return nil, s.refund(ctx, err, func(ctx context.Context, tx *repository.LedgerTx) error {
			account, err := tx.FindAccount(ctx, cmd.BuyerID)
			if err != nil {
				return err
			}
			account.Balance = account.Balance.Add(service.Cost)
			return tx.SaveAccount(ctx, account)
		})
	}
	return result, nil
}

// PurchaseOrganizationService buys an organization service on behalf of the buyer's
// organization, debiting the organization balance. Checking that the buyer is
// allowed to spend for the organization is up to the caller.
func (s *LedgerCommandService) PurchaseOrganizationService(ctx context.Context, cmd cqrs.PurchaseOrganizationServiceCommand) (*PurchaseResult, error) {
	if s.economy == nil {
		return nil, ErrServiceNotFound
	}
	service, ok := s.economy.OrganizationService(cmd.Service)
	if !ok {
		return nil, ErrServiceNotFound
	}

	result := &PurchaseResult{Service: service, Forced: cmd.Force}
	err := s.db.WithTx(ctx, func(tx *repository.LedgerTx) error {
		account, err := tx.FindAccount(ctx, cmd.BuyerID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoOrganization
		}
		if err != nil {
			return err
		}
		if !account.HasOrganization() {
			return ErrNoOrganization
		}

		org, err := tx.FindOrganization(ctx, *account.OrganizationName)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoOrganization
		}
		if err != nil {
			return err
		}
		result.Organization = org.Name

		if !cmd.Force {
			if org.Balance.LessThan(service.Cost) {
				return ErrInsufficientFunds
			}
			org.Balance = org.Balance.Sub(service.Cost)
			if err := tx.SaveOrganizationBalance(ctx, org.Name, org.Balance); err != nil {
				return err
			}
		}
		result.Balance = org.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.enqueuePurchase(ctx, events.ServicePurchasedEvent{
		GuildID:            cmd.GuildID,
		BuyerID:            cmd.BuyerID,
		Organization:       result.Organization,
		Service:            service.Name,
		Cost:               service.Cost,
		Forced:             cmd.Force,
		NotifyTo:           service.NotifyTo,
		PrivateChannelName: service.PrivateChannelName,
		CategoryID:         s.economy.OrganizationServiceCategory,
	})
	if err != nil {
		if cmd.Force {
			return nil, err
		}
		return nil, s.refund(ctx, err, func(ctx context.Context, tx *repository.LedgerTx) error {
			org, err := tx.FindOrganization(ctx, result.Organization)
			if err != nil {
				return err
			}
			return tx.SaveOrganizationBalance(ctx, org.Name, org.Balance.Add(service.Cost))
		})
	}
	return result, nil
}

// enqueuePurchase publishes the purchase for provisioning. Unlike ledger events, a
// failed publish fails the purchase.
func (s *LedgerCommandService) enqueuePurchase(ctx context.Context, purchase events.ServicePurchasedEvent) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, events.PurchaseEventsStream, events.ServicePurchased, purchase); err != nil {
		return fmt.Errorf("%w: %v", ErrPurchaseNotQueued, err)
	}
	return nil
}

// refund runs the compensating credit for a purchase that could not be queued. It
// survives cancellation of ctx, which may be the reason the publish failed.
func (s *LedgerCommandService) refund(ctx context.Context, cause error, credit func(ctx context.Context, tx *repository.LedgerTx) error) error {
	refundCtx := context.WithoutCancel(ctx)
	err := s.db.WithTx(refundCtx, func(tx *repository.LedgerTx) error {
		return credit(refundCtx, tx)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to refund unqueued purchase", "error", err, "cause", cause)
		return fmt.Errorf("%w: %w: %v", cause, ErrRefundFailed, err)
	}
	return cause
}
