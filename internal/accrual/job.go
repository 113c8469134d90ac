package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leonardo-panseri/discord-coins/internal/command"
	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "coins/accrual"

const (
	ReasonVoice = "voice"
	ReasonChat  = "chat"
	ReasonRole  = "role"
)

// Crediter is satisfied by *command.LedgerCommandService.
type Crediter interface {
	Accrue(ctx context.Context, cmd cqrs.AccrueCommand) (*command.AccrualResult, error)
}

type JobConfig struct {
	Interval      time.Duration
	SlowThreshold time.Duration
	AccrualRole   int64
	CoinsGain     decimal.Decimal
}

// Job credits members sitting in voice channels once per interval. Ticks run on a
// single goroutine: a slow tick delays the next one instead of overlapping it.
type Job struct {
	cfg      JobConfig
	presence PresenceSource
	crediter Crediter
	tracer   trace.Tracer

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewJob(cfg JobConfig, presence PresenceSource, crediter Crediter) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 10 * time.Second
	}
	return &Job{
		cfg:       cfg,
		presence:  presence,
		crediter:  crediter,
		tracer:    otel.Tracer(tracerName),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the tick loop. Blocks until Stop() is called or ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "coins.accrual.job",
	})

	defer close(j.stoppedCh)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "accrual job started", "interval", j.cfg.Interval, "coins_gain", j.cfg.CoinsGain.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			slog.InfoContext(ctx, "accrual job stopping")
			return
		case <-ticker.C:
			if _, err := j.Tick(ctx); err != nil {
				slog.ErrorContext(ctx, "accrual tick failed", "error", err)
			}
		}
	}
}

// Stop signals the job to stop and waits for the running tick to finish.
func (j *Job) Stop() {
	close(j.stopCh)
	<-j.stoppedCh
}

// Tick runs a single accrual pass: snapshot, select eligible members, commit all
// credits at once.
func (j *Job) Tick(ctx context.Context) (*command.AccrualResult, error) {
	ctx, span := j.tracer.Start(ctx, "accrual.tick")
	defer span.End()

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > j.cfg.SlowThreshold {
			slog.WarnContext(ctx, "accrual tick is slow", "elapsed", elapsed, "threshold", j.cfg.SlowThreshold)
		}
	}()

	channels, err := j.presence.VoiceChannels(ctx)
	if err != nil {
		if len(channels) == 0 {
			span.RecordError(err)
			span.SetStatus(codes.Error, "presence snapshot failed")
			return nil, fmt.Errorf("presence snapshot: %w", err)
		}
		slog.WarnContext(ctx, "partial presence snapshot", "channels", len(channels), "error", err)
	}

	credits := VoiceCredits(channels, j.cfg.AccrualRole, j.cfg.CoinsGain)
	span.SetAttributes(
		attribute.Int("accrual.channels", len(channels)),
		attribute.Int("accrual.credits", len(credits)),
	)

	result, err := j.crediter.Accrue(ctx, cqrs.AccrueCommand{Credits: credits, Reason: ReasonVoice})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, fmt.Errorf("commit accrual: %w", err)
	}

	span.SetAttributes(
		attribute.Int("accrual.credited", len(result.Credited)),
		attribute.Int("accrual.skipped", len(result.Skipped)),
	)
	slog.DebugContext(ctx, "accrual tick done",
		"channels", len(channels),
		"credited", len(result.Credited),
		"skipped", len(result.Skipped),
		"elapsed", time.Since(start))
	return result, nil
}
