package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/pkg/cmd"
)

// registerCommands syncs a guild's slash commands: obsolete ones are deleted
// and ones whose definition changed since the last sync are upserted.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, c := range remote {
		remoteByName[c.Name] = c
	}

	local := commandDefinitions(b.registry)
	hashes := b.cache.load(guildID)

	b.deleteObsoleteCommands(appID, guildID, remoteByName, local, hashes)
	b.upsertChangedCommands(appID, guildID, remoteByName, local, hashes)

	b.cache.save(guildID, hashes)
	return nil
}

func commandDefinitions(r *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range r.All() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// commandDefinition walks through middleware wrappers to the command's slash definition.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote map[string]*discordgo.ApplicationCommand, local []*discordgo.ApplicationCommand, hashes map[string]string) {
	wanted := make(map[string]struct{}, len(local))
	for _, d := range local {
		wanted[d.Name] = struct{}{}
	}

	for name, rc := range remote {
		if _, ok := wanted[name]; ok {
			continue
		}
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", name).Msg("delete obsolete command")
			continue
		}
		delete(hashes, name)
		log.Info().Str("guild", guildID).Str("command", name).Msg("obsolete command deleted")
	}
}

func (b *Bot) upsertChangedCommands(appID, guildID string, remote map[string]*discordgo.ApplicationCommand, defs []*discordgo.ApplicationCommand, hashes map[string]string) {
	for _, d := range defs {
		h := hashCommand(d)
		if _, registered := remote[d.Name]; registered && hashes[d.Name] == h {
			continue
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("register command")
			continue
		}
		hashes[d.Name] = h
		log.Info().Str("guild", guildID).Str("command", d.Name).Msg("command registered")
	}
}

func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch bot user: %w", err)
	}
	return u.ID, nil
}

// hashCache keeps per-guild command hashes on disk so unchanged commands are
// not re-registered on every start.
type hashCache struct {
	dir string
}

func (c hashCache) path(guildID string) string {
	return filepath.Join(c.dir, guildID+".json")
}

func (c hashCache) load(guildID string) map[string]string {
	out := make(map[string]string)
	if c.dir == "" {
		return out
	}
	if data, err := os.ReadFile(c.path(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (c hashCache) save(guildID string, hashes map[string]string) {
	if c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", c.dir).Msg("command cache unavailable")
		return
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(c.path(guildID), data, 0o644); err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("write command cache")
	}
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if c.DefaultMemberPermissions != nil {
		stable["default_member_permissions"] = *c.DefaultMemberPermissions
	}
	if c.DMPermission != nil {
		stable["dm_permission"] = *c.DMPermission
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if o.MinValue != nil {
			entry["min_value"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max_value"] = o.MaxValue
		}
		if len(o.ChannelTypes) > 0 {
			entry["channel_types"] = o.ChannelTypes
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
