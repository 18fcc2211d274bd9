package command

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/pkg/cmd"
)

type AdminDeps struct {
	Mute        *moderation.MuteController
	SlowMode    *moderation.SlowModeController
	Scheduler   *moderation.Scheduler
	Permissions platform.Permissions
	Localizer   platform.Localizer
}

// Admin is /admin with the mute, temp_ban and slow_mode subcommands.
type Admin struct {
	AdminDeps
}

func NewAdmin(deps AdminDeps) *Admin {
	return &Admin{AdminDeps: deps}
}

func (a *Admin) Name() string        { return "admin" }
func (a *Admin) Description() string { return "Moderation tools" }

func (a *Admin) Run(ctx context.Context, inv *cmd.Invocation) error {
	in, err := interactionOf(inv)
	if err != nil {
		return err
	}

	switch in.Subcommand {
	case "mute":
		return a.mute(ctx, in)
	case "temp_ban":
		return a.tempBan(ctx, in)
	case "slow_mode":
		return a.slowMode(ctx, in)
	default:
		return errUnknownSubcommand(in.Subcommand)
	}
}

// unitLabel renders "1.5 hour" in the user's language.
func (a *Admin) unitLabel(userID int64, magnitude float64, unit duration.Unit) string {
	return duration.CleanFloat(magnitude) + " " + a.Localizer.Lookup(userID, "admin.unit_"+string(unit))
}

func (a *Admin) mute(ctx context.Context, in *Interaction) error {
	user := in.Requester.ID
	l := a.Localizer

	if !a.Permissions.HasCapability(in.Requester, platform.CapModerateMembers) {
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.no_permission"))
	}
	target, ok := in.Options.Members["target"]
	if !ok {
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.no_member"))
	}

	magnitude := in.Options.Numbers["duration"]
	unit := duration.Unit(in.Options.Strings["unit"])
	reason := in.Options.Strings["reason"]

	res, err := a.Mute.RequestMute(ctx, moderation.MuteRequest{
		RequesterCanModerate: true,
		Target:               target,
		Magnitude:            magnitude,
		Unit:                 unit,
		Reason:               reason,
	})
	switch {
	case err == nil:
	case errors.Is(err, moderation.ErrInvalidTarget) && target.IsOwner:
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.can_t_owner"))
	case errors.Is(err, moderation.ErrInvalidTarget):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.already_timed_out"))
	case errors.Is(err, moderation.ErrInvalidDuration):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.duration_must_be_positive"))
	case errors.Is(err, moderation.ErrDurationTooLong):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.mute.too_long", int(moderation.MaxTimeout/(24*time.Hour))))
	default:
		return err
	}

	msg := l.Lookup(user, "admin.mute.success", userMention(target.ID), a.unitLabel(user, magnitude, unit), res.ExpiresAt)
	if reason != "" {
		msg += l.Lookup(user, "admin.mute.reason", reason)
	}
	return in.reply(ctx, msg)
}

func (a *Admin) tempBan(ctx context.Context, in *Interaction) error {
	user := in.Requester.ID
	l := a.Localizer

	if !a.Permissions.HasCapability(in.Requester, platform.CapBanMembers) {
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.temp_ban.no_permission"))
	}
	target, ok := in.Options.Members["target"]
	if !ok {
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.temp_ban.no_member"))
	}

	magnitude := in.Options.Numbers["duration"]
	unit := duration.Unit(in.Options.Strings["unit"])
	reason := in.Options.Strings["reason"]

	res, err := a.Scheduler.RequestTempBan(ctx, moderation.TempBanRequest{
		RequesterCanBan: true,
		Target:          target,
		Magnitude:       magnitude,
		Unit:            unit,
		ScopeID:         in.ScopeID,
		Reason:          reason,
	})
	switch {
	case err == nil:
	case errors.Is(err, moderation.ErrInvalidTarget):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.temp_ban.can_t_owner"))
	case errors.Is(err, moderation.ErrInvalidDuration):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.temp_ban.duration_too_short"))
	default:
		return err
	}

	msg := l.Lookup(user, "admin.temp_ban.success", userMention(target.ID), a.unitLabel(user, magnitude, unit), res.UnbanAt)
	if reason != "" {
		msg += l.Lookup(user, "admin.temp_ban.reason", reason)
	}
	if err := in.reply(ctx, msg); err != nil {
		// the sanction is already recorded; the ban still goes out
		log.Warn().Err(err).Msg("temp ban reply failed")
	}
	a.Scheduler.IssueBan(ctx, res, reason)
	return nil
}

func (a *Admin) slowMode(ctx context.Context, in *Interaction) error {
	user := in.Requester.ID
	l := a.Localizer

	if !a.Permissions.HasCapability(in.Requester, platform.CapManageChannels) {
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.slow_mode.no_permission"))
	}
	channel := in.Options.Channels["channel"]

	magnitude := in.Options.Numbers["time"]
	unit := duration.Unit(in.Options.Strings["unit"])

	res, err := a.SlowMode.RequestSlowMode(ctx, moderation.SlowModeRequest{
		RequesterCanManage: true,
		ChannelID:          channel.ID,
		SupportsSlowMode:   channel.SupportsSlowMode,
		Magnitude:          magnitude,
		Unit:               unit,
	})
	switch {
	case err == nil:
	case errors.Is(err, moderation.ErrInvalidTarget):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.slow_mode.wrong_channel"))
	case errors.Is(err, moderation.ErrInvalidDuration):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.slow_mode.time_must_be_no_negative"))
	case errors.Is(err, moderation.ErrDurationTooLong):
		return in.replyEphemeral(ctx, l.Lookup(user, "admin.slow_mode.too_long", moderation.MaxSlowModeSeconds/3600))
	default:
		return err
	}

	if res.Cancelled {
		return in.reply(ctx, l.Lookup(user, "admin.slow_mode.cancel", channelMention(channel.ID)))
	}
	return in.reply(ctx, l.Lookup(user, "admin.slow_mode.success", channelMention(channel.ID), a.unitLabel(user, magnitude, unit)))
}

func unitChoices(units []duration.Unit) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(units))
	for i, u := range units {
		out[i] = &discordgo.ApplicationCommandOptionChoice{Name: string(u), Value: string(u)}
	}
	return out
}

func (a *Admin) SlashDefinition() *discordgo.ApplicationCommand {
	perms := int64(discordgo.PermissionModerateMembers | discordgo.PermissionBanMembers | discordgo.PermissionManageChannels)
	dm := false
	minZero := 0.0

	return &discordgo.ApplicationCommand{
		Name:                     a.Name(),
		Description:              a.Description(),
		DefaultMemberPermissions: &perms,
		DMPermission:             &dm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "mute",
				Description: "Time a member out",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "Member to mute", Required: true},
					{Type: discordgo.ApplicationCommandOptionNumber, Name: "duration", Description: "How long", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "unit", Description: "Unit of the duration", Required: true, Choices: unitChoices(duration.MuteUnits)},
					{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Shown in the reply and the audit log"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "temp_ban",
				Description: "Ban a member for a while",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "Member to ban", Required: true},
					{Type: discordgo.ApplicationCommandOptionNumber, Name: "duration", Description: "How long", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "unit", Description: "Unit of the duration", Required: true, Choices: unitChoices(duration.BanUnits)},
					{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Shown in the reply and the audit log"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "slow_mode",
				Description: "Set a channel's slow mode, 0 turns it off",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to slow down", Required: true},
					{Type: discordgo.ApplicationCommandOptionNumber, Name: "time", Description: "Delay between messages", Required: true, MinValue: &minZero},
					{Type: discordgo.ApplicationCommandOptionString, Name: "unit", Description: "Unit of the delay", Required: true, Choices: unitChoices(duration.SlowModeUnits)},
				},
			},
		},
	}
}
