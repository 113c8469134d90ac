package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

// errMalformed marks messages that can never be handled. They are acknowledged
// instead of being retried forever.
var errMalformed = errors.New("malformed message")

// Subscriber consumes a stream through a consumer group. Failed messages stay in the
// group's pending list; once idle for MinIdle they are claimed back and retried,
// until MaxDeliveries is reached and they are dropped.
type Subscriber struct {
	client *redis.Client
	cfg    SubscriberConfig
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration

	MinIdle         time.Duration
	ReclaimInterval time.Duration
	MaxDeliveries   int64
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.MinIdle == 0 {
		config.MinIdle = time.Minute
	}
	if config.ReclaimInterval == 0 {
		config.ReclaimInterval = 30 * time.Second
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 5
	}
	return &Subscriber{client: client, cfg: config}
}

// Start consumes the stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	slog.InfoContext(ctx, "subscriber started",
		"stream", s.cfg.Stream,
		"group", s.cfg.Group,
		"consumer", s.cfg.Consumer,
		"min_idle", s.cfg.MinIdle)

	lastReclaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "subscriber stopping", "stream", s.cfg.Stream)
			return ctx.Err()
		default:
		}

		if time.Since(lastReclaim) >= s.cfg.ReclaimInterval {
			if err := s.reclaimOnce(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "stream", s.cfg.Stream, "error", err)
			}
			lastReclaim = time.Now()
		}

		if err := s.readMessages(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "error reading messages", "stream", s.cfg.Stream, "error", err)
			time.Sleep(time.Second)
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.BlockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			s.deliver(ctx, message)
		}
	}
	return nil
}

// reclaimOnce claims messages left pending by failed attempts or dead consumers.
func (s *Subscriber) reclaimOnce(ctx context.Context) error {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.cfg.Stream,
		Group:  s.cfg.Group,
		Idle:   s.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  s.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}

	for _, p := range pending {
		if p.RetryCount >= s.cfg.MaxDeliveries {
			slog.ErrorContext(ctx, "dropping message after too many deliveries",
				"message_id", p.ID,
				"deliveries", p.RetryCount)
			s.ack(ctx, p.ID)
			continue
		}

		messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   s.cfg.Stream,
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			MinIdle:  s.cfg.MinIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			return fmt.Errorf("xclaim: %w", err)
		}
		if len(messages) == 0 {
			// Claimed by another consumer in the meantime.
			continue
		}

		slog.InfoContext(ctx, "retrying pending message",
			"message_id", p.ID,
			"original_consumer", p.Consumer,
			"idle_time", p.Idle,
			"deliveries", p.RetryCount)
		s.deliver(ctx, messages[0])
	}
	return nil
}

// deliver runs the handler and acknowledges on success or on malformed input.
func (s *Subscriber) deliver(ctx context.Context, message redis.XMessage) {
	err := s.processMessage(ctx, message)
	switch {
	case errors.Is(err, errMalformed):
		slog.ErrorContext(ctx, "acknowledging malformed message", "message_id", message.ID, "error", err)
	case err != nil:
		slog.ErrorContext(ctx, "failed to process message", "message_id", message.ID, "error", err)
		return
	}
	s.ack(ctx, message.ID)
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, id).Err(); err != nil {
		slog.WarnContext(ctx, "failed to ACK message", "message_id", id, "error", err)
	}
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", errMalformed)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	return s.cfg.Handler(ctx, event)
}
