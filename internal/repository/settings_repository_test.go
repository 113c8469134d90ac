package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/leonardo-panseri/discord-coins/internal/config"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) (*SettingsRepository, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSettingsRepository(client), m
}

func TestSettingsRepository_EmptyUntilSaved(t *testing.T) {
	repo, _ := newTestSettings(t)

	toggles, ok, err := repo.LoadToggles(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, config.Toggles{}, toggles)
}

func TestSettingsRepository_SaveLoad(t *testing.T) {
	repo, m := newTestSettings(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveToggles(ctx, config.Toggles{PayEnabled: false, DepositEnabled: true}))
	assert.Equal(t, "false", m.HGet(settingsKey, payEnabledField))
	assert.Equal(t, "true", m.HGet(settingsKey, depositEnabledField))

	toggles, ok, err := repo.LoadToggles(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, config.Toggles{PayEnabled: false, DepositEnabled: true}, toggles)
}

func TestSettingsRepository_SurvivesRestart(t *testing.T) {
	repo, m := newTestSettings(t)
	ctx := context.Background()

	store := config.NewToggleStore(config.Toggles{PayEnabled: true, DepositEnabled: true}, repo)
	_, err := store.Update(ctx, func(t *config.Toggles) { t.PayEnabled = false })
	require.NoError(t, err)

	// A second process reading the same Redis.
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	toggles, ok, err := NewSettingsRepository(client).LoadToggles(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, config.Toggles{PayEnabled: false, DepositEnabled: true}, toggles)
}

func TestSettingsRepository_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"not a bool", map[string]string{payEnabledField: "maybe", depositEnabledField: "true"}},
		{"missing field", map[string]string{payEnabledField: "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, m := newTestSettings(t)
			for k, v := range tt.fields {
				m.HSet(settingsKey, k, v)
			}

			_, ok, err := repo.LoadToggles(context.Background())
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSettingsRepository_Unavailable(t *testing.T) {
	repo, m := newTestSettings(t)
	m.Close()

	_, _, err := repo.LoadToggles(context.Background())
	assert.Error(t, err)
	assert.Error(t, repo.SaveToggles(context.Background(), config.Toggles{}))
}
