package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/internal/platform"
)

// resolveInteraction flattens a slash command event into a command.Interaction.
// ownerID is the guild owner, empty outside a guild or when unknown.
func resolveInteraction(i *discordgo.InteractionCreate, ownerID string, now time.Time) *command.Interaction {
	data := i.ApplicationCommandData()

	in := &command.Interaction{
		ScopeID:   parseID(i.GuildID),
		ChannelID: parseID(i.ChannelID),
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		in.Requester = toMember(i.GuildID, ownerID, i.Member.User.ID, i.Member, now)
		in.Username = i.Member.User.Username
	case i.User != nil:
		in.Requester = toMember(i.GuildID, ownerID, i.User.ID, nil, now)
		in.Username = i.User.Username
	}

	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		in.Subcommand = opts[0].Name
		opts = opts[0].Options
	}
	in.Options = resolveOptions(i.GuildID, ownerID, opts, data.Resolved, now)
	return in
}

func resolveOptions(guildID, ownerID string, opts []*discordgo.ApplicationCommandInteractionDataOption, res *discordgo.ApplicationCommandInteractionDataResolved, now time.Time) command.Options {
	out := command.Options{
		Strings:  map[string]string{},
		Numbers:  map[string]float64{},
		Integers: map[string]int64{},
		Users:    map[string]int64{},
		Members:  map[string]platform.Member{},
		Channels: map[string]command.Channel{},
	}

	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			out.Strings[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionNumber:
			out.Numbers[o.Name] = o.FloatValue()
		case discordgo.ApplicationCommandOptionInteger:
			out.Integers[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionUser:
			id, _ := o.Value.(string)
			out.Users[o.Name] = parseID(id)
			if res == nil || guildID == "" {
				continue
			}
			if m, ok := res.Members[id]; ok {
				out.Members[o.Name] = toMember(guildID, ownerID, id, m, now)
			}
		case discordgo.ApplicationCommandOptionChannel:
			id, _ := o.Value.(string)
			ch := command.Channel{ID: parseID(id)}
			if res != nil {
				if c, ok := res.Channels[id]; ok {
					ch.SupportsSlowMode = supportsSlowMode(c.Type)
				}
			}
			out.Channels[o.Name] = ch
		}
	}
	return out
}
