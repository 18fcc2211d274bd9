package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/warden/internal/platform"
)

var capabilityBits = map[platform.Capability]int64{
	platform.CapModerateMembers: discordgo.PermissionModerateMembers,
	platform.CapBanMembers:      discordgo.PermissionBanMembers,
	platform.CapManageChannels:  discordgo.PermissionManageChannels,
}

type memberKey struct {
	guild, user int64
}

// Permissions answers capability queries from the permission bits Discord
// sends with each interaction, falling back to the guild roles in State.
type Permissions struct {
	state    *discordgo.State
	observed sync.Map // memberKey -> int64
}

func NewPermissions(state *discordgo.State) *Permissions {
	return &Permissions{state: state}
}

// Observe remembers the computed permissions of an interaction's member.
func (p *Permissions) Observe(guildID, userID string, bits int64) {
	p.observed.Store(memberKey{guild: parseID(guildID), user: parseID(userID)}, bits)
}

func (p *Permissions) HasCapability(m platform.Member, c platform.Capability) bool {
	bit, ok := capabilityBits[c]
	if !ok {
		return false
	}
	if m.IsOwner {
		return true
	}

	if v, ok := p.observed.Load(memberKey{guild: m.ScopeID, user: m.ID}); ok {
		return hasBit(v.(int64), bit)
	}
	bits, ok := p.fromState(m)
	return ok && hasBit(bits, bit)
}

func hasBit(bits, bit int64) bool {
	if bits&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return bits&bit != 0
}

func (p *Permissions) fromState(m platform.Member) (int64, bool) {
	if p.state == nil {
		return 0, false
	}
	guildID := formatID(m.ScopeID)
	guild, err := p.state.Guild(guildID)
	if err != nil || guild == nil {
		return 0, false
	}
	member, err := p.state.Member(guildID, formatID(m.ID))
	if err != nil || member == nil {
		return 0, false
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAdministrator, true
	}
	return rolePermissions(guild, member.Roles), true
}

// rolePermissions ORs the @everyone role with the member's roles.
func rolePermissions(guild *discordgo.Guild, roleIDs []string) int64 {
	wanted := make(map[string]struct{}, len(roleIDs)+1)
	wanted[guild.ID] = struct{}{}
	for _, id := range roleIDs {
		wanted[id] = struct{}{}
	}

	var bits int64
	for _, r := range guild.Roles {
		if _, ok := wanted[r.ID]; ok {
			bits |= r.Permissions
		}
	}
	return bits
}
