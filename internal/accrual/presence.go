package accrual

import (
	"context"

	"github.com/leonardo-panseri/discord-coins/shared/models"
	"github.com/shopspring/decimal"
)

// Participant is a member present in a voice channel at snapshot time.
type Participant struct {
	MemberID   int64
	RoleIDs    []int64
	AFK        bool
	ServerMute bool
	ServerDeaf bool
	SelfMute   bool
	SelfDeaf   bool
}

type VoiceChannel struct {
	GuildID      int64
	ChannelID    int64
	Participants []Participant
}

// PresenceSource takes a snapshot of every populated voice channel. It may return
// a partial snapshot together with an error.
type PresenceSource interface {
	VoiceChannels(ctx context.Context) ([]VoiceChannel, error)
}

// Eligible reports whether p earns voice accrual: holds the accrual role, is not
// AFK and is neither muted nor deafened in any way.
func Eligible(p Participant, accrualRole int64) bool {
	if p.AFK || p.ServerMute || p.ServerDeaf || p.SelfMute || p.SelfDeaf {
		return false
	}
	for _, r := range p.RoleIDs {
		if r == accrualRole {
			return true
		}
	}
	return false
}

// VoiceCredits computes the credits for one tick. Only channels with at least two
// participants and at least two eligible participants pay out.
func VoiceCredits(channels []VoiceChannel, accrualRole int64, gain decimal.Decimal) []models.Credit {
	var credits []models.Credit
	for _, ch := range channels {
		if len(ch.Participants) < 2 {
			continue
		}
		var eligible []int64
		for _, p := range ch.Participants {
			if Eligible(p, accrualRole) {
				eligible = append(eligible, p.MemberID)
			}
		}
		if len(eligible) < 2 {
			continue
		}
		for _, id := range eligible {
			credits = append(credits, models.Credit{MemberID: id, Amount: gain})
		}
	}
	return credits
}
