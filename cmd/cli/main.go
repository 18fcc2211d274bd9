// Command cli inspects and edits the bot's stored state while the bot is
// stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/config"
	"github.com/keshon/warden/internal/logging"
	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/points"
	"github.com/keshon/warden/internal/storage"
)

const secondsPerHour = 3600

const usage = `usage: cli <command> [flags]

commands:
  list                            pending temp bans
  pardon  -scope ID -subject ID   drop a pending temp ban
  history -scope ID               recent commands in a guild
  balance -user ID                a user's point balance
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// the token is not needed offline
	if os.Getenv("DISCORD_TOKEN") == "" {
		os.Setenv("DISCORD_TOKEN", "offline")
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := logging.Setup(logging.Options{Level: "warn"}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	backend, err := storage.Open(cfg.StorageDriver, cfg.StoragePath, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatch(ctx, backend, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		backend.Close()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, backend storage.Backend, name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	scope := fs.Int64("scope", 0, "guild ID")
	subject := fs.Int64("subject", 0, "banned user ID")
	user := fs.Int64("user", 0, "user ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch name {
	case "list":
		return list(ctx, backend)
	case "pardon":
		if *scope == 0 || *subject == 0 {
			return fmt.Errorf("pardon needs -scope and -subject")
		}
		return pardon(ctx, backend, *scope, *subject)
	case "history":
		if *scope == 0 {
			return fmt.Errorf("history needs -scope")
		}
		return history(ctx, backend, *scope)
	case "balance":
		n, err := points.NewLedger(backend).Balance(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
}

func list(ctx context.Context, store moderation.SanctionStore) error {
	pending, err := store.LoadSanctions(ctx)
	if err != nil {
		return err
	}
	moderation.SortSanctions(pending)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tSUBJECT\tUNBAN AT (UTC)")
	for _, p := range pending {
		fmt.Fprintf(w, "%d\t%d\t%s\n", p.ScopeID, p.SubjectID, unbanAt(p.ExpiryEpochHours))
	}
	return w.Flush()
}

// unbanAt renders an expiry hour. Hours past the representable range are "never".
func unbanAt(epochHours int64) string {
	if epochHours > math.MaxInt64/secondsPerHour {
		return "never"
	}
	return time.Unix(epochHours*secondsPerHour, 0).UTC().Format(time.DateTime)
}

func pardon(ctx context.Context, store moderation.SanctionStore, scope, subject int64) error {
	s := moderation.NewScheduler(moderation.SchedulerConfig{Store: store})
	if err := s.Load(ctx); err != nil {
		return err
	}
	if !s.Pardon(scope, subject) {
		return fmt.Errorf("no pending ban for %d in %d", subject, scope)
	}
	return s.Save(ctx)
}

func history(ctx context.Context, backend storage.Backend, scope int64) error {
	records, err := backend.CommandHistory(ctx, scope)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT (UTC)\tUSER\tCOMMAND")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s (%d)\t%s\n", r.At.UTC().Format(time.DateTime), r.Username, r.UserID, r.Command)
	}
	return w.Flush()
}
