package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/config"
	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
	"gitlab.bluewillows.net/root/dnsbot/internal/registry"
	"gitlab.bluewillows.net/root/dnsbot/internal/store"
	"gitlab.bluewillows.net/root/dnsbot/pkg/httputil"
	"gitlab.bluewillows.net/root/dnsbot/providers/cloudflare"
)

// stack is the persisted state and the services built on it.
type stack struct {
	backend  store.Backend
	registry *registry.Registry
	ledger   *ledger.Ledger
	manager  *lifecycle.Manager
}

// openStack connects the configured state backend and wires the registry,
// ledger and lifecycle manager on top of it.
func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	backend, err := openBackend(ctx, cfg.State)
	if err != nil {
		return nil, err
	}

	factory := cloudflare.NewFactory(&cloudflare.Config{
		APIEndpoint: cfg.Cloudflare.APIEndpoint,
		Timeout:     cfg.Cloudflare.Timeout,
		RateLimit:   cfg.Cloudflare.RateLimit,
	},
		cloudflare.WithHTTPClient(httputil.NewClient(&httputil.ClientConfig{
			Timeout:  cfg.Cloudflare.Timeout,
			Logger:   logger,
			Observer: observeRemote,
		})),
		cloudflare.WithLogger(logger),
	)

	reg := registry.New(store.NewJSON[registry.Settings](backend, store.SettingsDocument), factory,
		registry.WithLogger(logger))
	led := ledger.New(store.NewJSON[ledger.Document](backend, store.LedgerDocument),
		ledger.WithQuota(cfg.Records.Quota),
		ledger.WithLogger(logger))

	return &stack{
		backend:  backend,
		registry: reg,
		ledger:   led,
		manager:  lifecycle.New(reg, led, lifecycle.WithLogger(logger)),
	}, nil
}

func (s *stack) Close() error {
	return s.backend.Close()
}

func openBackend(ctx context.Context, cfg config.StateConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		b, err := store.NewRedisBackend(ctx, store.RedisConfig{
			Address:   cfg.Redis.Address,
			DB:        cfg.Redis.DB,
			Password:  cfg.Redis.Password,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis state: %w", err)
		}
		return b, nil
	default:
		return store.NewFileBackend(cfg.Dir, map[string]string{
			store.SettingsDocument: cfg.SettingsPath,
			store.LedgerDocument:   cfg.LedgerPath,
		}), nil
	}
}

// observeRemote feeds Cloudflare round trips into the remote request metrics.
func observeRemote(req *http.Request, status int, elapsed time.Duration, err error) {
	op := cloudflare.Operation(req)
	metrics.RemoteRequestsTotal.WithLabelValues(op, metrics.RemoteOutcome(status, err)).Inc()
	metrics.RemoteRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
