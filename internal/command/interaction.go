// Package command implements the bot's slash commands on top of the moderation
// and mini-game packages. Commands see a resolved Interaction and never talk to
// the chat platform directly.
package command

import (
	"context"
	"fmt"

	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/pkg/cmd"
)

type Reply struct {
	Content   string
	Ephemeral bool
}

// Replier sends the single response an interaction allows.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
}

type Channel struct {
	ID               int64
	SupportsSlowMode bool
}

// Options holds the resolved values of a subcommand's options by name.
type Options struct {
	Strings  map[string]string
	Numbers  map[string]float64
	Integers map[string]int64
	// Users holds every user option; Members only those who belong to the scope.
	Users    map[string]int64
	Members  map[string]platform.Member
	Channels map[string]Channel
}

// Interaction is one slash command invocation as the platform adapter resolved
// it. ScopeID is zero outside a community.
type Interaction struct {
	ScopeID    int64
	ChannelID  int64
	Requester  platform.Member
	Username   string
	Subcommand string
	Options    Options
	Replier    Replier
}

func (in *Interaction) reply(ctx context.Context, content string) error {
	return in.Replier.Reply(ctx, Reply{Content: content})
}

func (in *Interaction) replyEphemeral(ctx context.Context, content string) error {
	return in.Replier.Reply(ctx, Reply{Content: content, Ephemeral: true})
}

func interactionOf(inv *cmd.Invocation) (*Interaction, error) {
	in, ok := inv.Data.(*Interaction)
	if !ok || in == nil {
		return nil, fmt.Errorf("unsupported invocation payload %T", inv.Data)
	}
	return in, nil
}

func userMention(id int64) string    { return fmt.Sprintf("<@%d>", id) }
func channelMention(id int64) string { return fmt.Sprintf("<#%d>", id) }
