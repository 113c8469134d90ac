package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leonardo-panseri/discord-coins/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

const settingsKey = "coins:settings"

const (
	payEnabledField     = "pay_enabled"
	depositEnabledField = "deposit_enabled"
)

// SettingsRepository persists the runtime toggles in a Redis hash so that changes
// made by administrators survive restarts.
type SettingsRepository struct {
	redis *goredis.Client
}

func NewSettingsRepository(redisClient *goredis.Client) *SettingsRepository {
	return &SettingsRepository{redis: redisClient}
}

// LoadToggles returns the persisted toggles. ok is false when nothing was stored yet.
func (r *SettingsRepository) LoadToggles(ctx context.Context) (toggles config.Toggles, ok bool, err error) {
	values, err := r.redis.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		return config.Toggles{}, false, fmt.Errorf("failed to load settings: %w", err)
	}
	if len(values) == 0 {
		return config.Toggles{}, false, nil
	}

	if toggles.PayEnabled, err = parseFlag(values, payEnabledField); err != nil {
		return config.Toggles{}, false, err
	}
	if toggles.DepositEnabled, err = parseFlag(values, depositEnabledField); err != nil {
		return config.Toggles{}, false, err
	}
	return toggles, true, nil
}

func (r *SettingsRepository) SaveToggles(ctx context.Context, toggles config.Toggles) error {
	err := r.redis.HSet(ctx, settingsKey,
		payEnabledField, strconv.FormatBool(toggles.PayEnabled),
		depositEnabledField, strconv.FormatBool(toggles.DepositEnabled),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func parseFlag(values map[string]string, field string) (bool, error) {
	raw, ok := values[field]
	if !ok {
		return false, fmt.Errorf("setting %s missing from %s", field, settingsKey)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", field, err)
	}
	return v, nil
}
