// Package platform declares what the moderation and game core needs from the
// chat platform and the other services around it.
package platform

import "context"

// Member is the slice of a community member the core looks at.
type Member struct {
	ID       int64
	ScopeID  int64
	IsOwner  bool
	TimedOut bool
}

// Capability names a platform permission.
type Capability string

const (
	CapModerateMembers Capability = "moderate_members"
	CapBanMembers      Capability = "ban_members"
	CapManageChannels  Capability = "manage_channels"
)

// Moderator issues moderation actions. Calls are fire-and-forget: implementations
// return immediately and handle delivery and failures themselves.
type Moderator interface {
	TimeoutMember(ctx context.Context, scopeID, target int64, durationMillis int64, reason string)
	BanMember(ctx context.Context, scopeID, target int64, reason string)
	UnbanMember(ctx context.Context, scopeID, subjectID int64)
	SetSlowMode(ctx context.Context, channelID int64, seconds int)
}

// Permissions answers capability queries for a member.
type Permissions interface {
	HasCapability(member Member, capability Capability) bool
}

// Points credits rewards to a user's persistent balance.
type Points interface {
	AddReward(ctx context.Context, userID int64, amount int64) error
}

// Localizer resolves a string key for a user and interpolates args.
type Localizer interface {
	Lookup(userID int64, key string, args ...any) string
}
