package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/leonardo-panseri/discord-coins/internal/provisioning"
	"github.com/leonardo-panseri/discord-coins/shared/events"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
)

const membersPageSize = 1000

// Provisioner fulfils purchased services on the guild.
type Provisioner struct {
	api      sessionAPI
	messages *Messages
}

func NewProvisioner(api sessionAPI, messages *Messages) *Provisioner {
	return &Provisioner{api: api, messages: messages}
}

// Steps returns the notification, the private channel and the role grant, each
// only when the service configures it. Steps are not rolled back.
func (p *Provisioner) Steps(purchase events.ServicePurchasedEvent) []provisioning.Step {
	var steps []provisioning.Step
	if purchase.NotifyTo != 0 {
		steps = append(steps, provisioning.Step{Name: "notify", Run: func(ctx context.Context) error {
			return p.notify(ctx, purchase)
		}})
	}
	if purchase.PrivateChannelName != "" {
		steps = append(steps, provisioning.Step{Name: "channel", Run: func(ctx context.Context) error {
			return p.createPrivateChannel(ctx, purchase)
		}})
	}
	if purchase.RoleToAdd != nil {
		role := *purchase.RoleToAdd
		steps = append(steps, provisioning.Step{Name: "role", Run: func(ctx context.Context) error {
			err := p.api.GuildMemberRoleAdd(utils.FormatID(purchase.GuildID), utils.FormatID(purchase.BuyerID),
				utils.FormatID(role), discordgo.WithContext(ctx))
			if err != nil {
				return fmt.Errorf("add role %d: %w", role, err)
			}
			return nil
		}})
	}
	return steps
}

func (p *Provisioner) notify(ctx context.Context, purchase events.ServicePurchasedEvent) error {
	notification := p.messages.Format(msgServiceNotification, "member", Mention(purchase.BuyerID), "service", purchase.Service)
	if purchase.Organization != "" {
		notification = p.messages.Format(msgOrgSvcNotification, "organization", purchase.Organization, "service", purchase.Service)
	}
	embed := Embed(Reply{OK: true, Text: notification})
	if _, err := p.api.ChannelMessageSendEmbed(utils.FormatID(purchase.NotifyTo), embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify %d: %w", purchase.NotifyTo, err)
	}
	return nil
}

func (p *Provisioner) createPrivateChannel(ctx context.Context, purchase events.ServicePurchasedEvent) error {
	guildID := utils.FormatID(purchase.GuildID)
	buyerID := utils.FormatID(purchase.BuyerID)
	opt := discordgo.WithContext(ctx)

	owner := purchase.Organization
	if owner == "" {
		member, err := p.api.GuildMember(guildID, buyerID, opt)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch buyer, naming channel by id", "error", err)
		}
		owner = displayName(member)
		if owner == "" {
			owner = buyerID
		}
	}

	data := discordgo.GuildChannelCreateData{
		Name: owner + " - " + purchase.PrivateChannelName,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			// The @everyone role shares the guild id.
			{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
			{ID: buyerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionViewChannel},
		},
	}
	if purchase.CategoryID != 0 {
		data.ParentID = utils.FormatID(purchase.CategoryID)
	}

	channel, err := p.api.GuildChannelCreateComplex(guildID, data, opt)
	if err != nil {
		return fmt.Errorf("create private channel: %w", err)
	}

	welcome := Embed(Reply{OK: true, Text: p.messages.Format(msgPrivateChannel,
		"member", Mention(purchase.BuyerID), "service", purchase.Service)})
	// The channel exists at this point; failing the step would create a second one.
	if _, err := p.api.ChannelMessageSendEmbed(channel.ID, welcome, opt); err != nil {
		slog.WarnContext(ctx, "failed to send welcome message", "channel_id", channel.ID, "error", err)
	}
	return nil
}

// GuildMembers implements RoleMembers over the REST API.
type GuildMembers struct {
	api sessionAPI
}

func NewGuildMembers(api sessionAPI) *GuildMembers {
	return &GuildMembers{api: api}
}

func (g *GuildMembers) MembersWithRole(ctx context.Context, guildID, roleID int64) ([]int64, error) {
	role := utils.FormatID(roleID)
	var (
		ids   []int64
		after string
	)
	for {
		page, err := g.api.GuildMembers(utils.FormatID(guildID), after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			after = m.User.ID
			if !slices.Contains(m.Roles, role) {
				continue
			}
			if id, err := utils.ParseID(m.User.ID); err == nil {
				ids = append(ids, id)
			}
		}
		if len(page) < membersPageSize {
			return ids, nil
		}
	}
}
