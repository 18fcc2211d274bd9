package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/internal/storage"
	"github.com/keshon/warden/pkg/cmd"
)

// HistoryRecorder stores command invocations.
type HistoryRecorder interface {
	RecordCommand(ctx context.Context, rec storage.CommandRecord) error
}

// WithCommandLogger logs every run and records guild invocations in history.
func WithCommandLogger(rec HistoryRecorder, clock func() time.Time) cmd.Middleware {
	if clock == nil {
		clock = time.Now
	}
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			started := clock()
			err := c.Run(ctx, inv)

			in, ok := inv.Data.(*command.Interaction)
			if !ok {
				return err
			}

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("command", c.Name()).
				Str("sub", in.Subcommand).
				Int64("scope", in.ScopeID).
				Int64("user", in.Requester.ID).
				Dur("took", clock().Sub(started)).
				Msg("command handled")

			if in.ScopeID == 0 || rec == nil {
				return err
			}
			name := c.Name()
			if in.Subcommand != "" {
				name += " " + in.Subcommand
			}
			if e := rec.RecordCommand(context.WithoutCancel(ctx), storage.CommandRecord{
				ScopeID:   in.ScopeID,
				ChannelID: in.ChannelID,
				UserID:    in.Requester.ID,
				Username:  in.Username,
				Command:   name,
				At:        started.UTC(),
			}); e != nil {
				log.Warn().Err(e).Str("command", name).Msg("failed to record command")
			}
			return err
		})
	}
}
