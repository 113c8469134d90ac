package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/leonardo-panseri/discord-coins/internal/accrual"
	"github.com/leonardo-panseri/discord-coins/internal/logger"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
)

const eventTimeout = 15 * time.Second

// Bot routes gateway events to the chat rewarder, the role bonus and the command
// dispatcher.
type Bot struct {
	session    *discordgo.Session
	dispatcher *Dispatcher
	chat       *accrual.ChatRewarder
	roles      *accrual.RoleBonus

	ctx     context.Context
	removes []func()
}

func NewBot(session *discordgo.Session, dispatcher *Dispatcher, chat *accrual.ChatRewarder, roles *accrual.RoleBonus) *Bot {
	return &Bot{
		session:    session,
		dispatcher: dispatcher,
		chat:       chat,
		roles:      roles,
		ctx:        context.Background(),
	}
}

// Open registers the event handlers and connects to the gateway. Handlers derive
// their context from ctx.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "coins.discord"})
	b.removes = append(b.removes,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onMessageCreate),
		b.session.AddHandler(b.onGuildMemberUpdate),
	)
	return b.session.Open()
}

func (b *Bot) Close() error {
	for _, remove := range b.removes {
		remove()
	}
	b.removes = nil
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.InfoContext(b.ctx, "connected to gateway", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	authorID, err := utils.ParseID(m.Author.ID)
	if err != nil {
		return
	}
	guildID, _ := utils.ParseID(m.GuildID)
	channelID, _ := utils.ParseID(m.ChannelID)

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MemberID:  logger.Ptr(authorID),
		GuildID:   logger.Ptr(guildID),
		ChannelID: logger.Ptr(channelID),
	})

	textChannel := false
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		textChannel = ch.Type == discordgo.ChannelTypeGuildText
	}

	if _, err := b.chat.OnMessage(ctx, accrual.ChatMessage{
		GuildID:     guildID,
		ChannelID:   channelID,
		AuthorID:    authorID,
		AuthorBot:   m.Author.Bot,
		TextChannel: textChannel,
		Content:     m.Content,
	}); err != nil {
		slog.ErrorContext(ctx, "chat reward failed", "error", err)
	}

	if m.Author.Bot {
		return
	}

	inv := Invocation{
		GuildID:   guildID,
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   m.Content,
	}
	if m.Member != nil {
		inv.AuthorRoles = parseIDs(m.Member.Roles)
	}
	if perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID, discordgo.WithContext(ctx)); err == nil {
		inv.Admin = perms&discordgo.PermissionAdministrator != 0
	} else {
		slog.WarnContext(ctx, "failed to resolve permissions", "error", err)
	}

	reply, handled := b.dispatcher.Dispatch(ctx, inv)
	if !handled {
		return
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, Embed(reply), discordgo.WithContext(ctx)); err != nil {
		slog.ErrorContext(ctx, "failed to send reply", "error", err)
	}
}

// onGuildMemberUpdate needs the cached member to diff roles. Updates for members
// missing from the state cache are ignored.
func (b *Bot) onGuildMemberUpdate(s *discordgo.Session, u *discordgo.GuildMemberUpdate) {
	if u.BeforeUpdate == nil || u.Member == nil || u.User == nil || u.User.Bot {
		return
	}
	memberID, err := utils.ParseID(u.User.ID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	ctx = logger.WithLogFields(ctx, logger.LogFields{MemberID: logger.Ptr(memberID)})

	total, err := b.roles.OnRolesChanged(ctx, memberID, parseIDs(u.BeforeUpdate.Roles), parseIDs(u.Roles))
	if err != nil {
		slog.ErrorContext(ctx, "role bonus failed", "error", err)
		return
	}
	if total.IsPositive() {
		slog.InfoContext(ctx, "role bonus credited", "amount", total.String())
	}
}
