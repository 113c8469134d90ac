package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/internal/query"
	"github.com/leonardo-panseri/discord-coins/internal/repository"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	redisclient "github.com/leonardo-panseri/discord-coins/shared/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const eventStreamMaxLen = 10000

// app holds the stores and services shared by every subcommand.
type app struct {
	cfg     config.Config
	economy *config.Economy
	db      *repository.DB
	redis   *redisclient.Client
	toggles *config.ToggleStore
	queries *query.LedgerQueryService
}

// openApp loads configuration and opens the ledger store. The economy file is only
// required when requireEconomy is set; Redis is optional everywhere.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions, requireEconomy bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg, cmd.ErrOrStderr())))

	a := &app{cfg: cfg}

	economyPath := cfg.EconomyPath
	if opts.Economy != "" {
		economyPath = opts.Economy
	}
	if requireEconomy || opts.Economy != "" {
		if a.economy, err = config.LoadEconomy(economyPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid economy configuration", err)
		}
	}

	driver, dsn, err := repository.ParseURL(cfg.DB.URL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid DATABASE_URL", err)
	}
	a.db, err = repository.Open(ctx, repository.Config{
		Driver:        driver,
		DSN:           dsn,
		MaxOpenConns:  cfg.DB.MaxConns,
		ProbeAttempts: cfg.DB.ProbeAttempts,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger store", err)
	}
	if err := a.db.Migrate(ctx); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to migrate ledger store", err)
	}

	if cfg.Redis.Enabled() {
		a.redis, err = redisclient.NewClient(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
	}

	if err := a.restoreToggles(ctx); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore settings", err)
	}

	readRepo := repository.NewLedgerReadRepository(a.db, a.redisClient(), cfg.LeaderboardCacheTTL)
	a.queries = query.NewLedgerQueryService(readRepo)
	return a, nil
}

// restoreToggles prefers the toggles persisted by administrators over the economy
// file defaults.
func (a *app) restoreToggles(ctx context.Context) error {
	initial := config.Toggles{PayEnabled: true, DepositEnabled: true}
	if a.economy != nil {
		initial = a.economy.Toggles()
	}
	if a.redis == nil {
		a.toggles = config.NewToggleStore(initial, nil)
		return nil
	}

	settings := repository.NewSettingsRepository(a.redis.Client)
	stored, ok, err := settings.LoadToggles(ctx)
	if err != nil {
		return err
	}
	if ok {
		initial = stored
	}
	a.toggles = config.NewToggleStore(initial, settings)
	return nil
}

func (a *app) commandService(publisher command.EventPublisher) *command.LedgerCommandService {
	return command.NewLedgerCommandService(a.db, a.economy, a.toggles, publisher)
}

// publisher returns the stream publisher, or nil without Redis.
func (a *app) publisher() command.EventPublisher {
	if a.redis == nil {
		return nil
	}
	return events.NewPublisher(a.redis.Client, eventStreamMaxLen)
}

func (a *app) redisClient() *goredis.Client {
	if a.redis == nil {
		return nil
	}
	return a.redis.Client
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
