package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/command"
	"github.com/keshon/warden/internal/config"
	"github.com/keshon/warden/internal/discord"
	"github.com/keshon/warden/internal/locale"
	"github.com/keshon/warden/internal/logging"
	"github.com/keshon/warden/internal/middleware"
	"github.com/keshon/warden/internal/minigame"
	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/opsapi"
	"github.com/keshon/warden/internal/points"
	"github.com/keshon/warden/internal/storage"
	"github.com/keshon/warden/pkg/cmd"
	"github.com/keshon/warden/pkg/jobmgr"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatal().Err(err).Msg("setup logging")
	}
	defer logCloser.Close()

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("warden stopped with an error")
		os.Exit(1)
	}
	log.Info().Msg("warden exited cleanly")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.Open(cfg.StorageDriver, cfg.StoragePath, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	bundle, err := locale.Load(cfg.LocaleDefault)
	if err != nil {
		return err
	}

	session, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	moderator := discord.NewModerator(session)
	permissions := discord.NewPermissions(session.State)

	jobs := jobmgr.NewManager(func(msg string) {
		log.Debug().Str("job", msg).Msg("job status")
	})
	scheduler := moderation.NewScheduler(moderation.SchedulerConfig{
		Store:            backend,
		Moderator:        moderator,
		Jobs:             jobs,
		AutosaveInterval: cfg.AutosaveInterval,
	})
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	arcade := minigame.NewArcade(minigame.NewEngine(nil, nil), points.NewLedger(backend), nil)

	registry := cmd.NewRegistry()
	commands := []cmd.Command{
		command.NewAdmin(command.AdminDeps{
			Mute:        moderation.NewMuteController(moderator, nil),
			SlowMode:    moderation.NewSlowModeController(moderator),
			Scheduler:   scheduler,
			Permissions: permissions,
			Localizer:   bundle,
		}),
		command.NewOneATwoB(arcade, bundle),
	}
	for _, c := range commands {
		wrapped := cmd.Apply(c,
			middleware.WithGuildOnly(bundle),
			middleware.WithCommandLogger(backend, nil),
		)
		if err := registry.Register(wrapped); err != nil {
			return err
		}
	}

	bot := discord.NewBot(session, registry, permissions, discord.BotConfig{
		Blacklisted:      cfg.Blacklisted,
		RegisterCommands: cfg.InitSlashCommands,
		CommandCacheDir:  cfg.CommandCacheDir,
		RegisterWorkers:  cfg.SyncWorkers,
		Locales:          bundle,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- bot.Run(ctx) }()

	if cfg.OpsAddr != "" {
		ops := opsapi.New(opsapi.Config{
			Addr:        cfg.OpsAddr,
			Sanctions:   scheduler,
			History:     backend,
			ActiveGames: arcade.Registry().Count,
			Jobs:        jobs.List,
		})
		go func() { errCh <- ops.Run(ctx) }()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case runErr = <-errCh:
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := scheduler.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("stop scheduler")
	}
	if err := moderator.Wait(stopCtx); err != nil {
		log.Warn().Err(err).Msg("moderation actions still in flight")
	}
	return runErr
}
