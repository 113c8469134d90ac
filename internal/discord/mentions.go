package discord

import (
	"strings"

	"github.com/leonardo-panseri/discord-coins/shared/utils"
)

// ParseMention accepts a member, role or channel mention, or a bare id.
func ParseMention(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = strings.TrimSuffix(s[1:], ">")
		s = strings.TrimLeft(s, "@!&#")
	}
	return utils.ParseID(s)
}

func Mention(memberID int64) string {
	return "<@" + utils.FormatID(memberID) + ">"
}
