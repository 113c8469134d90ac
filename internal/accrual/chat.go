package accrual

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/leonardo-panseri/discord-coins/internal/config"
	"github.com/leonardo-panseri/discord-coins/shared/cqrs"
	"github.com/leonardo-panseri/discord-coins/shared/models"
)

// ChatMessage is the platform-neutral view of an incoming message.
type ChatMessage struct {
	GuildID     int64
	ChannelID   int64
	AuthorID    int64
	AuthorBot   bool
	TextChannel bool
	Content     string
}

type ChatRewarder struct {
	cfg      config.ChatReward
	crediter Crediter
}

func NewChatRewarder(cfg config.ChatReward, crediter Crediter) *ChatRewarder {
	return &ChatRewarder{cfg: cfg, crediter: crediter}
}

// OnMessage credits the author when the message qualifies. It reports whether a
// credit was committed.
func (r *ChatRewarder) OnMessage(ctx context.Context, msg ChatMessage) (bool, error) {
	if !r.qualifies(msg) {
		return false, nil
	}

	result, err := r.crediter.Accrue(ctx, cqrs.AccrueCommand{
		Credits: []models.Credit{{MemberID: msg.AuthorID, Amount: r.cfg.CoinsForMessage}},
		Reason:  ReasonChat,
	})
	if err != nil {
		return false, err
	}
	if len(result.Skipped) > 0 {
		slog.DebugContext(ctx, "chat reward skipped for blacklisted member", "member_id", msg.AuthorID)
		return false, nil
	}
	return true, nil
}

func (r *ChatRewarder) qualifies(msg ChatMessage) bool {
	if !r.cfg.Enabled() || msg.AuthorBot || !msg.TextChannel {
		return false
	}
	if !r.cfg.Whitelisted(msg.ChannelID) {
		return false
	}
	return utf8.RuneCountInString(msg.Content) >= r.cfg.MinChars
}
