package discord

import (
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/warden/internal/platform"
)

// parseID turns a snowflake into an int64, zero when it is empty or invalid.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// toMember converts a guild member. m.User may be nil for resolved option
// members, so userID is passed separately.
func toMember(guildID, ownerID, userID string, m *discordgo.Member, now time.Time) platform.Member {
	out := platform.Member{
		ID:      parseID(userID),
		ScopeID: parseID(guildID),
		IsOwner: ownerID != "" && ownerID == userID,
	}
	if m != nil && m.CommunicationDisabledUntil != nil {
		out.TimedOut = m.CommunicationDisabledUntil.After(now)
	}
	return out
}

// supportsSlowMode reports whether a channel type has a per-user rate limit.
func supportsSlowMode(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildForum,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread:
		return true
	default:
		return false
	}
}
