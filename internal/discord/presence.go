package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/leonardo-panseri/discord-coins/internal/accrual"
	"github.com/leonardo-panseri/discord-coins/shared/utils"
)

// Presence is an accrual.PresenceSource reading the gateway state cache.
type Presence struct {
	state *discordgo.State
}

func NewPresence(state *discordgo.State) *Presence {
	return &Presence{state: state}
}

// VoiceChannels snapshots every available guild. Entries that cannot be parsed are
// reported in the error while the rest of the snapshot is still returned.
func (p *Presence) VoiceChannels(ctx context.Context) ([]accrual.VoiceChannel, error) {
	p.state.RLock()
	defer p.state.RUnlock()
	return snapshotGuilds(p.state.Guilds)
}

func snapshotGuilds(guilds []*discordgo.Guild) ([]accrual.VoiceChannel, error) {
	var (
		channels []accrual.VoiceChannel
		errs     []error
	)
	for _, g := range guilds {
		if g == nil || g.Unavailable {
			continue
		}
		guildID, err := utils.ParseID(g.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("guild %q: %w", g.ID, err))
			continue
		}

		members := make(map[string]*discordgo.Member, len(g.Members))
		for _, m := range g.Members {
			if m.User != nil {
				members[m.User.ID] = m
			}
		}

		byChannel := make(map[string]int)
		for _, vs := range g.VoiceStates {
			if vs == nil || vs.ChannelID == "" {
				continue
			}
			participant, err := toParticipant(vs, members, g.AfkChannelID)
			if err != nil {
				errs = append(errs, fmt.Errorf("guild %s: %w", g.ID, err))
				continue
			}

			idx, ok := byChannel[vs.ChannelID]
			if !ok {
				channelID, err := utils.ParseID(vs.ChannelID)
				if err != nil {
					errs = append(errs, fmt.Errorf("channel %q: %w", vs.ChannelID, err))
					continue
				}
				idx = len(channels)
				byChannel[vs.ChannelID] = idx
				channels = append(channels, accrual.VoiceChannel{GuildID: guildID, ChannelID: channelID})
			}
			channels[idx].Participants = append(channels[idx].Participants, participant)
		}
	}
	return channels, errors.Join(errs...)
}

func toParticipant(vs *discordgo.VoiceState, members map[string]*discordgo.Member, afkChannelID string) (accrual.Participant, error) {
	memberID, err := utils.ParseID(vs.UserID)
	if err != nil {
		return accrual.Participant{}, fmt.Errorf("member %q: %w", vs.UserID, err)
	}

	member := vs.Member
	if member == nil {
		member = members[vs.UserID]
	}
	var roles []int64
	if member != nil {
		roles = parseIDs(member.Roles)
	}

	return accrual.Participant{
		MemberID:   memberID,
		RoleIDs:    roles,
		AFK:        afkChannelID != "" && vs.ChannelID == afkChannelID,
		ServerMute: vs.Mute,
		ServerDeaf: vs.Deaf,
		SelfMute:   vs.SelfMute,
		SelfDeaf:   vs.SelfDeaf,
	}, nil
}

// parseIDs drops ids that don't parse.
func parseIDs(ids []string) []int64 {
	out := make([]int64, 0, len(ids))
	for _, s := range ids {
		if id, err := utils.ParseID(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
