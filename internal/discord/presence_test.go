package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/leonardo-panseri/discord-coins/internal/accrual"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotGuilds(t *testing.T) {
	guilds := []*discordgo.Guild{
		{
			ID:           "1",
			AfkChannelID: "30",
			Members: []*discordgo.Member{
				{User: &discordgo.User{ID: "100"}, Roles: []string{"900"}},
				{User: &discordgo.User{ID: "101"}, Roles: []string{"900", "5"}},
			},
			VoiceStates: []*discordgo.VoiceState{
				{UserID: "100", ChannelID: "20"},
				{UserID: "101", ChannelID: "20", SelfMute: true},
				{UserID: "102", ChannelID: "30", Member: &discordgo.Member{Roles: []string{"900"}}},
				{UserID: "103", ChannelID: ""},
			},
		},
		{ID: "2", Unavailable: true, VoiceStates: []*discordgo.VoiceState{{UserID: "200", ChannelID: "40"}}},
	}

	channels, err := snapshotGuilds(guilds)
	require.NoError(t, err)
	require.Len(t, channels, 2)

	assert.Equal(t, accrual.VoiceChannel{
		GuildID:   1,
		ChannelID: 20,
		Participants: []accrual.Participant{
			{MemberID: 100, RoleIDs: []int64{900}},
			{MemberID: 101, RoleIDs: []int64{900, 5}, SelfMute: true},
		},
	}, channels[0])

	require.Len(t, channels[1].Participants, 1)
	assert.True(t, channels[1].Participants[0].AFK)
	assert.Equal(t, []int64{900}, channels[1].Participants[0].RoleIDs)
}

func TestSnapshotGuilds_PartialOnBadIDs(t *testing.T) {
	guilds := []*discordgo.Guild{
		{ID: "bogus"},
		{
			ID: "1",
			VoiceStates: []*discordgo.VoiceState{
				{UserID: "x", ChannelID: "20"},
				{UserID: "100", ChannelID: "20"},
			},
		},
	}

	channels, err := snapshotGuilds(guilds)
	assert.Error(t, err)
	require.Len(t, channels, 1)
	require.Len(t, channels[0].Participants, 1)
	assert.Equal(t, int64(100), channels[0].Participants[0].MemberID)
	assert.Empty(t, channels[0].Participants[0].RoleIDs)
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"<@123>", 123, false},
		{"<@!123>", 123, false},
		{"<@&456>", 456, false},
		{"<#789>", 789, false},
		{"1148309572936417341", 1148309572936417341, false},
		{"@someone", 0, true},
		{"<@>", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMention(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessages_Format(t *testing.T) {
	m := NewMessages(map[string]string{msgPaid: "{member} <- {amount}", msgBalance: ""})

	assert.Equal(t, "<@1> <- 5", m.Format(msgPaid, "member", "<@1>", "amount", "5"))
	assert.Equal(t, defaultMessages[msgBalance], m.Format(msgBalance))
	assert.Equal(t, "no_such_key", m.Format("no_such_key"))
}
