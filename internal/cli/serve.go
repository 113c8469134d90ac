package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonardo-panseri/discord-coins/internal/accrual"
	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/discord"
	"github.com/leonardo-panseri/discord-coins/internal/handler"
	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/internal/provisioning"
	"github.com/leonardo-panseri/discord-coins/internal/telemetry"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/spf13/cobra"
)

const (
	provisioningGroup = "coinsbot-provisioning"
	shutdownTimeout   = 10 * time.Second
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Interval time.Duration
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the chat gateway and run the economy",
		Long: `Connects the bot, starts the voice accrual job and, when HTTP_PORT is set,
the administrative HTTP API. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Minute, "voice accrual interval")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer a.Close()

	tel, err := telemetry.Setup(ctx, a.cfg.OTel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up telemetry", err)
	}
	// Logs go to stdout from here on, through the OTel bridge when enabled.
	logger.Setup(a.cfg)

	if a.cfg.Discord.Token == "" {
		return WrapExitError(ExitCommandError, "DISCORD_TOKEN is required", nil)
	}
	session, err := discord.NewSession(a.cfg.Discord.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}

	provisioner := discord.NewProvisioner(session, discord.NewMessages(a.economy.Messages))

	var (
		publisher command.EventPublisher
		direct    *provisioning.DirectPublisher
	)
	if a.redis != nil {
		publisher = a.publisher()
		purchases := provisioning.NewHandler(provisioner, provisioning.NewRedisProgressStore(a.redis.Client))
		subscriber := events.NewSubscriber(a.redis.Client, events.SubscriberConfig{
			Group:    provisioningGroup,
			Consumer: consumerName(),
			Stream:   events.PurchaseEventsStream,
			Handler:  purchases.Handle,
		})
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "provisioning subscriber stopped", "error", err)
			}
		}()
	} else {
		direct = provisioning.NewDirectPublisher(provisioner)
		publisher = direct
	}

	commands := a.commandService(publisher)
	dispatcher := discord.NewDispatcher(a.economy, commands, a.queries, discord.NewGuildMembers(session))
	bot := discord.NewBot(session, dispatcher,
		accrual.NewChatRewarder(a.economy.CoinsByChat, commands),
		accrual.NewRoleBonus(a.economy.SpecialRoles, commands),
	)
	if err := bot.Open(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to connect to gateway", err)
	}

	job := accrual.NewJob(accrual.JobConfig{
		Interval:    opts.Interval,
		AccrualRole: a.economy.AccrualRole,
		CoinsGain:   a.economy.CoinsGain,
	}, discord.NewPresence(session.State), commands)
	go job.Run(ctx)

	var srv *http.Server
	if a.cfg.HTTP.Enabled() {
		router := handler.NewRouter(handler.NewLedgerHandler(commands, a.queries), []byte(a.cfg.HTTP.JWTSecret), a.cfg.OTel.ServiceName)
		srv = &http.Server{
			Addr:              ":" + a.cfg.HTTP.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.InfoContext(ctx, "http server starting", "port", a.cfg.HTTP.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "http server failed", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	job.Stop()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown failed", "error", err)
		}
	}
	// Stop taking commands before draining provisioning. Purchases still in flight
	// are refunded once the publisher is closed.
	if err := bot.Close(); err != nil {
		slog.Error("failed to close session", "error", err)
	}
	if direct != nil {
		direct.Close()
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown failed", "error", err)
	}
	return nil
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "coinsbot"
	}
	return "coinsbot-" + host
}
