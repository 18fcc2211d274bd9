// Package discord adapts the command layer to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/pkg/cmd"
	"github.com/keshon/warden/pkg/util"
)

// LocaleTracker follows the client language each user sends with an interaction.
type LocaleTracker interface {
	UseLocale(userID int64, tag string) bool
}

type BotConfig struct {
	// Blacklisted reports guilds the bot leaves as soon as it sees them.
	Blacklisted func(guildID int64) bool
	// RegisterCommands syncs slash commands on ready and on guild join.
	RegisterCommands bool
	// CommandCacheDir holds per-guild command hashes. Empty disables the cache.
	CommandCacheDir string
	// RegisterWorkers bounds how many guilds are synced at once on ready.
	RegisterWorkers int
	// Locales, when set, is told each requester's client locale.
	Locales LocaleTracker
	Clock   func() time.Time
}

type Bot struct {
	dg          *discordgo.Session
	registry    *cmd.Registry
	permissions *Permissions
	cache       hashCache
	cfg         BotConfig

	ctx context.Context
}

// NewSession creates an unopened session with the intents the bot relies on.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	dg.StateEnabled = true
	return dg, nil
}

func NewBot(dg *discordgo.Session, registry *cmd.Registry, perms *Permissions, cfg BotConfig) *Bot {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Blacklisted == nil {
		cfg.Blacklisted = func(int64) bool { return false }
	}
	return &Bot{
		dg:          dg,
		registry:    registry,
		permissions: perms,
		cache:       hashCache{dir: cfg.CommandCacheDir},
		cfg:         cfg,
		ctx:         context.Background(),
	}
}

// Run opens the gateway and serves interactions until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	var guilds []string
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		guilds = append(guilds, g.ID)
	}

	if b.cfg.RegisterCommands {
		_ = util.Parallel(b.ctx, guilds, max(b.cfg.RegisterWorkers, 1), func(_ context.Context, guildID string) error {
			if err := b.registerCommands(guildID); err != nil {
				log.Error().Err(err).Str("guild", guildID).Msg("slash command sync failed")
			}
			return nil
		})
	} else {
		log.Info().Msg("slash command sync skipped")
	}

	log.Info().Str("user", r.User.Username).Int("guilds", len(guilds)).Msg("discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.Guild.ID) {
		return
	}
	if !b.cfg.RegisterCommands {
		return
	}
	if err := b.registerCommands(g.Guild.ID); err != nil {
		log.Error().Err(err).Str("guild", g.Guild.ID).Msg("slash command sync failed")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.Blacklisted(parseID(guildID)) {
		return false
	}
	log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("leave guild failed")
	}
	return true
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	c := b.registry.Get(data.Name)
	if c == nil {
		log.Warn().Str("command", data.Name).Msg("unknown command")
		return
	}

	in := resolveInteraction(i, b.ownerOf(s, i.GuildID), b.cfg.Clock())
	in.Replier = &replier{s: s, i: i.Interaction}
	b.observe(i, in)

	if err := c.Run(b.ctx, &cmd.Invocation{Data: in}); err != nil {
		log.Error().Err(err).Str("command", data.Name).Msg("command failed")
	}
}

// observe records what the interaction tells about its requester.
func (b *Bot) observe(i *discordgo.InteractionCreate, in *command.Interaction) {
	if i.Member != nil && i.Member.User != nil && b.permissions != nil {
		b.permissions.Observe(i.GuildID, i.Member.User.ID, i.Member.Permissions)
	}
	if b.cfg.Locales != nil && in.Requester.ID != 0 {
		b.cfg.Locales.UseLocale(in.Requester.ID, string(i.Locale))
	}
}

func (b *Bot) ownerOf(s *discordgo.Session, guildID string) string {
	if guildID == "" {
		return ""
	}
	if g, err := s.State.Guild(guildID); err == nil && g != nil {
		return g.OwnerID
	}
	g, err := s.Guild(guildID)
	if err != nil || g == nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("guild owner unknown")
		return ""
	}
	return g.OwnerID
}

type replier struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *replier) Reply(ctx context.Context, reply command.Reply) error {
	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}
