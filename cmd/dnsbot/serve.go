package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/dnsbot/internal/bot"
	"gitlab.bluewillows.net/root/dnsbot/internal/config"
	"gitlab.bluewillows.net/root/dnsbot/internal/discord"
	"gitlab.bluewillows.net/root/dnsbot/internal/flow"
	"gitlab.bluewillows.net/root/dnsbot/internal/health"
	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load configuration first (fail fast)
			cfg, err := config.Load(config.FilePath(configPath))
			if err != nil {
				return err
			}
			logger, closer := setupLogger(cfg.Logging)
			defer closer.Close()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("dnsbot starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("state_backend", cfg.State.Backend),
	)
	logger.Debug("effective configuration", slog.String("config", cfg.String()))

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.registry.Seed(ctx, cfg.Access.Owners, cfg.Access.RequiredRoleID); err != nil {
		return fmt.Errorf("seeding access policy: %w", err)
	}
	st.manager.RefreshMetrics(ctx)

	// Domains with bad credentials stay registered; commands on them fail
	// with a provider error until an owner fixes them.
	for name, err := range st.manager.VerifyDomains(ctx) {
		logger.Warn("domain credential check failed",
			slog.String("domain", name),
			slog.String("error", err.Error()),
		)
	}

	gateway, err := discord.New(discord.Config{
		Token:         cfg.Discord.Token,
		ApplicationID: cfg.Discord.ApplicationID,
		GuildID:       cfg.Discord.GuildID,
		LogChannelID:  cfg.Discord.LogChannelID,
	}, discord.WithLogger(logger))
	if err != nil {
		return err
	}

	router := flow.NewRouter(flow.WithLogger(logger))
	b := bot.New(st.manager, router,
		bot.WithLogger(logger),
		bot.WithAuditor(gateway),
		bot.WithRegistrar(gateway),
		bot.WithPageSize(cfg.Flows.PageSize),
		bot.WithTimeouts(bot.Timeouts{
			Confirm: cfg.Flows.ConfirmTimeout,
			Select:  cfg.Flows.SelectTimeout,
			Browse:  cfg.Flows.BrowseTimeout,
			List:    cfg.Flows.ListTimeout,
			View:    cfg.Flows.ViewTimeout,
		}),
	)

	var healthServer *health.Server
	if cfg.Server.Port > 0 {
		healthServer = health.New(cfg.Server.Port,
			health.WithLogger(logger),
			health.WithVersion(Version),
		)
		healthServer.RegisterChecker("state", st.backend.Ping)
		healthServer.RegisterChecker("discord", gateway.Ready)
		healthServer.RegisterDegradedChecker("creation", func(ctx context.Context) (bool, string) {
			p, err := st.registry.Policy(ctx)
			if err != nil || !p.Locked {
				return false, ""
			}
			return true, "dns record creation is locked"
		})
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("starting health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	if err := gateway.Open(b); err != nil {
		return err
	}

	logger.Info("dnsbot initialized, waiting for commands",
		slog.Int("domains", len(st.manager.Domains(ctx))),
		slog.Int("health_port", cfg.Server.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	b.Shutdown()
	if err := gateway.Close(); err != nil {
		logger.Warn("discord close error", slog.String("error", err.Error()))
	}

	logger.Info("discord session closed")
	return nil
}
