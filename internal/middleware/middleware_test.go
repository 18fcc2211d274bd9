package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/internal/platform/platformtest"
	"github.com/keshon/warden/internal/storage"
	"github.com/keshon/warden/pkg/cmd"
)

type stubCommand struct {
	ran int
	err error
}

func (p *stubCommand) Name() string        { return "admin" }
func (p *stubCommand) Description() string { return "stub command" }
func (p *stubCommand) Run(context.Context, *cmd.Invocation) error {
	p.ran++
	return p.err
}

type replies struct{ got []command.Reply }

func (r *replies) Reply(_ context.Context, rep command.Reply) error {
	r.got = append(r.got, rep)
	return nil
}

type recorder struct {
	recs []storage.CommandRecord
	err  error
}

func (r *recorder) RecordCommand(_ context.Context, rec storage.CommandRecord) error {
	r.recs = append(r.recs, rec)
	return r.err
}

func TestGuildOnly(t *testing.T) {
	p := &stubCommand{}
	c := cmd.Apply(p, WithGuildOnly(platformtest.Localizer{}))

	r := &replies{}
	dm := &command.Interaction{Requester: platform.Member{ID: 1}, Replier: r}
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: dm}))
	assert.Zero(t, p.ran)
	assert.Equal(t, []command.Reply{{Content: "mini_game.guild_only", Ephemeral: true}}, r.got)

	inGuild := &command.Interaction{ScopeID: 5, Requester: platform.Member{ID: 1}, Replier: r}
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: inGuild}))
	assert.Equal(t, 1, p.ran)
}

func TestCommandLoggerRecordsGuildInvocations(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	boom := errors.New("boom")
	p := &stubCommand{err: boom}
	c := cmd.Apply(p, WithCommandLogger(rec, func() time.Time { return at }))

	in := &command.Interaction{
		ScopeID:    5,
		ChannelID:  6,
		Requester:  platform.Member{ID: 7, ScopeID: 5},
		Username:   "mod",
		Subcommand: "mute",
	}
	err := c.Run(context.Background(), &cmd.Invocation{Data: in})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []storage.CommandRecord{{
		ScopeID: 5, ChannelID: 6, UserID: 7, Username: "mod", Command: "admin mute", At: at,
	}}, rec.recs)

	dm := &command.Interaction{Requester: platform.Member{ID: 7}}
	p.err = nil
	require.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: dm}))
	assert.Len(t, rec.recs, 1)
}

func TestCommandLoggerIgnoresRecorderFailure(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	c := cmd.Apply(&stubCommand{}, WithCommandLogger(rec, nil))
	in := &command.Interaction{ScopeID: 5, Requester: platform.Member{ID: 7}}
	assert.NoError(t, c.Run(context.Background(), &cmd.Invocation{Data: in}))
	assert.Len(t, rec.recs, 1)
}
