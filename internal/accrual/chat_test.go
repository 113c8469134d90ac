package accrual

import (
	"context"
	"testing"

	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRewarder_OnMessage(t *testing.T) {
	cfg := config.ChatReward{
		MinChars:            5,
		CoinsForMessage:     decimal.RequireFromString("0.5"),
		WhitelistedChannels: []int64{10, 20, 30},
	}

	tests := []struct {
		name string
		msg  ChatMessage
		want bool
	}{
		{"qualifies", ChatMessage{AuthorID: 1, ChannelID: 20, TextChannel: true, Content: "hello"}, true},
		{"counts code points", ChatMessage{AuthorID: 1, ChannelID: 30, TextChannel: true, Content: "ciaò!"}, true},
		{"too short", ChatMessage{AuthorID: 1, ChannelID: 20, TextChannel: true, Content: "hey"}, false},
		{"bot author", ChatMessage{AuthorID: 1, ChannelID: 20, TextChannel: true, AuthorBot: true, Content: "hello"}, false},
		{"not a text channel", ChatMessage{AuthorID: 1, ChannelID: 20, Content: "hello"}, false},
		{"not whitelisted", ChatMessage{AuthorID: 1, ChannelID: 25, TextChannel: true, Content: "hello"}, false},
		{"last whitelisted channel", ChatMessage{AuthorID: 1, ChannelID: 10, TextChannel: true, Content: "hello"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rewarder := NewChatRewarder(cfg, env.svc)

			got, err := rewarder.OnMessage(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.True(t, env.balance(t, 1).Equal(decimal.RequireFromString("0.5")))
			} else {
				assert.True(t, env.balance(t, 1).IsZero())
			}
		})
	}
}

func TestChatRewarder_Disabled(t *testing.T) {
	env := newTestEnv(t)
	rewarder := NewChatRewarder(config.ChatReward{}, env.svc)

	got, err := rewarder.OnMessage(context.Background(), ChatMessage{AuthorID: 1, TextChannel: true, Content: "anything"})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestChatRewarder_Blacklisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Blacklist(ctx, cqrs.BlacklistCommand{MemberID: 1, Blacklisted: true}))
	rewarder := NewChatRewarder(config.ChatReward{CoinsForMessage: decimal.NewFromInt(1)}, env.svc)

	got, err := rewarder.OnMessage(ctx, ChatMessage{AuthorID: 1, TextChannel: true, Content: "hello"})
	require.NoError(t, err)
	assert.False(t, got)
	assert.True(t, env.balance(t, 1).IsZero())
}
