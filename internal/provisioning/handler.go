package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/redis/go-redis/v9"
)

const (
	progressTTL = 72 * time.Hour
	lockTTL     = 5 * time.Minute
)

// ErrInProgress is returned when another delivery of the same event holds the
// provisioning lock. The message stays pending and is retried later.
var ErrInProgress = errors.New("provisioning already in progress")

// Step is one side effect of a purchase. A step that returns nil is recorded and
// never run again for the same event.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Provisioner turns a purchase into the ordered steps that carry it out on the chat
// platform.
type Provisioner interface {
	Steps(purchase events.ServicePurchasedEvent) []Step
}

// ProgressStore records the completed steps of each purchase event.
type ProgressStore interface {
	// Lock reserves id for a single worker. It returns false if id is already locked.
	Lock(ctx context.Context, id string) (bool, error)
	Unlock(ctx context.Context, id string) error
	Done(ctx context.Context, id, step string) (bool, error)
	Complete(ctx context.Context, id, step string) error
}

type Handler struct {
	provisioner Provisioner
	progress    ProgressStore
}

func NewHandler(provisioner Provisioner, progress ProgressStore) *Handler {
	return &Handler{provisioner: provisioner, progress: progress}
}

// Handle is an events.Handler for the purchase stream. Each step of a purchase runs
// at most once per event id: a redelivery after a partial failure resumes from the
// first step that did not complete.
func (h *Handler) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.ServicePurchased {
		return nil
	}

	var purchase events.ServicePurchasedEvent
	if err := events.DecodeData(event, &purchase); err != nil {
		return fmt.Errorf("decode %s: %w", event.ID, err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "coins.provisioning",
		EventID:   logger.Ptr(event.ID),
		MemberID:  logger.Ptr(purchase.BuyerID),
		GuildID:   logger.Ptr(purchase.GuildID),
	})

	locked, err := h.progress.Lock(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("lock %s: %w", event.ID, err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", event.ID, ErrInProgress)
	}
	defer func() {
		if err := h.progress.Unlock(context.WithoutCancel(ctx), event.ID); err != nil {
			slog.WarnContext(ctx, "failed to release provisioning lock", "error", err)
		}
	}()

	ran := 0
	for _, step := range h.provisioner.Steps(purchase) {
		done, err := h.progress.Done(ctx, event.ID, step.Name)
		if err != nil {
			return fmt.Errorf("check step %s: %w", step.Name, err)
		}
		if done {
			continue
		}
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("provision %s, step %s: %w", purchase.Service, step.Name, err)
		}
		if err := h.progress.Complete(ctx, event.ID, step.Name); err != nil {
			return fmt.Errorf("record step %s: %w", step.Name, err)
		}
		ran++
	}

	if ran == 0 {
		slog.InfoContext(ctx, "purchase already provisioned, skipping", "service", purchase.Service)
		return nil
	}
	slog.InfoContext(ctx, "purchase provisioned",
		"service", purchase.Service,
		"organization", purchase.Organization,
		"forced", purchase.Forced,
		"steps", ran)
	return nil
}

// RedisProgressStore keeps a set of completed steps per event, expiring after 72h,
// and a short-lived lock key.
type RedisProgressStore struct {
	client *redis.Client
}

func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{client: client}
}

func (s *RedisProgressStore) Lock(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, progressKey(id)+":lock", time.Now().UTC().Format(time.RFC3339), lockTTL).Result()
}

func (s *RedisProgressStore) Unlock(ctx context.Context, id string) error {
	return s.client.Del(ctx, progressKey(id)+":lock").Err()
}

func (s *RedisProgressStore) Done(ctx context.Context, id, step string) (bool, error) {
	return s.client.SIsMember(ctx, progressKey(id)+":steps", step).Result()
}

func (s *RedisProgressStore) Complete(ctx context.Context, id, step string) error {
	key := progressKey(id) + ":steps"
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, step)
	pipe.Expire(ctx, key, progressTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func progressKey(id string) string {
	return "coins:provisioning:" + id
}
