// Package middleware holds cmd.Middleware for the slash commands.
package middleware

import (
	"context"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/pkg/cmd"
)

// WithGuildOnly refuses invocations made outside a community.
func WithGuildOnly(l platform.Localizer) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if in, ok := inv.Data.(*command.Interaction); ok && in.ScopeID == 0 {
				return in.Replier.Reply(ctx, command.Reply{
					Content:   l.Lookup(in.Requester.ID, "mini_game.guild_only"),
					Ephemeral: true,
				})
			}
			return c.Run(ctx, inv)
		})
	}
}
