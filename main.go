package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ezenkico/deploy-commander/sidecar/interfaces"
	"github.com/ezenkico/deploy-commander/sidecar/models"
	"github.com/ezenkico/deploy-commander/sidecar/services/agent"
	"github.com/ezenkico/deploy-commander/sidecar/services/compose"
	"github.com/ezenkico/deploy-commander/sidecar/services/docker"
	"github.com/ezenkico/deploy-commander/sidecar/services/memory"
	"github.com/ezenkico/deploy-commander/sidecar/services/registry"
)

const configPath = "/run/config.json"

func loadConfiguration(path string) (models.Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return models.Configuration{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	var cfg models.Configuration
	if err := json.Unmarshal(b, &cfg); err != nil {
		return models.Configuration{}, fmt.Errorf("parse config json %q: %w", path, err)
	}

	return cfg, nil
}

func selectPlatform(
	cfg models.Configuration,
	store *registry.Store,
	logger zerolog.Logger,
) (interfaces.Cluster, interfaces.Listener, error) {
	switch cfg.Platform {
	case "docker":
		comm, err := agent.NewAgentCommunicationFromEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("docker platform needs the agent for listener routing: %w", err)
		}
		p, err := docker.NewDockerPlatform(cfg.Cluster, cfg.Job, cfg.Run, store, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, agent.NewListener(comm, cfg.Listener, logger), nil
	case "memory", "":
		return memory.NewCluster(cfg.Cluster.Name, cfg.Cluster.Network, store), memory.NewListener(cfg.Listener.Name), nil
	default:
		return nil, nil, fmt.Errorf("%q is not a valid platform", cfg.Platform)
	}
}

// checkDistinctTenants rejects configs that would compose one tenant twice.
func checkDistinctTenants(descriptors []models.ServiceDescriptor) error {
	seen := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		if j, ok := seen[d.TenantID]; ok {
			return fmt.Errorf("services[%d] and services[%d] both use tenant %q", j, i, d.TenantID)
		}
		seen[d.TenantID] = i
	}
	return nil
}

func run(
	ctx context.Context,
	cfg models.Configuration,
	cluster interfaces.Cluster,
	listener interfaces.Listener,
	out io.Writer,
	logger zerolog.Logger,
) error {
	if err := checkDistinctTenants(cfg.Services); err != nil {
		return err
	}

	composer := compose.New(cfg.Prefix, logger)

	switch cfg.Action {
	case models.ActionTeardown:
		for _, d := range cfg.Services {
			if err := composer.Teardown(ctx, d, cluster, listener); err != nil {
				return fmt.Errorf("teardown %q: %w", d.TenantID, err)
			}
		}
		return nil

	case models.ActionCompose, "":
		topologies := make([]*models.ComposedTopology, 0, len(cfg.Services))
		for _, d := range cfg.Services {
			t, err := composer.Compose(ctx, d, cluster, listener)
			if err != nil {
				return fmt.Errorf("compose %q: %w", d.TenantID, err)
			}
			topologies = append(topologies, t)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(topologies)

	default:
		return fmt.Errorf("unknown action %q", cfg.Action)
	}
}

// registryRefresher re-reads the addresses behind published registry entries.
type registryRefresher interface {
	RefreshRegistry(ctx context.Context) error
}

// refreshRegistry calls r every interval until ctx is done.
func refreshRegistry(ctx context.Context, r registryRefresher, every time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshRegistry(ctx); err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("registry refresh failed")
			}
		}
	}
}

// serveRegistry answers registry lookups on addr until ctx is done. A non-nil
// refresher keeps the records current while serving.
func serveRegistry(
	ctx context.Context,
	addr string,
	store *registry.Store,
	refresher registryRefresher,
	every time.Duration,
	logger zerolog.Logger,
) error {
	srv := registry.NewServer(addr, store, logger)

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() {
		logger.Info().Str("addr", addr).Str("domain", store.Domain()).Msg("registry DNS listening")
		close(started)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	// Shutdown fails on a server that has not started yet.
	select {
	case err := <-errc:
		return err
	case <-started:
	}

	if refresher != nil && every > 0 {
		go refreshRegistry(ctx, refresher, every, logger)
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Shutdown()
	}
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

func newRootCommand() *cobra.Command {
	var (
		config   string
		action   string
		logLevel string
		dnsAddr  string

		dnsRefresh time.Duration
	)

	cmd := &cobra.Command{
		Use:           "sidecar",
		Short:         "Compose adapter/bff sidecar services onto a shared cluster and listener",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := loadConfiguration(config)
			if err != nil {
				return err
			}
			if action != "" {
				cfg.Action = action
			}

			store := registry.New(cfg.Cluster.Domain)
			cluster, listener, err := selectPlatform(cfg, store, logger)
			if err != nil {
				return err
			}
			if c, ok := cluster.(io.Closer); ok {
				defer c.Close()
			}

			ctx := cmd.Context()
			if err := run(ctx, cfg, cluster, listener, cmd.OutOrStdout(), logger); err != nil {
				return err
			}

			if dnsAddr == "" || cfg.Action == models.ActionTeardown {
				return nil
			}
			refresher, _ := cluster.(registryRefresher)
			return serveRegistry(ctx, dnsAddr, store, refresher, dnsRefresh, logger)
		},
	}

	cmd.Flags().StringVar(&config, "config", configPath, "path to the runner configuration")
	cmd.Flags().StringVar(&action, "action", "", "override the configured action (compose|teardown)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&dnsAddr, "dns-addr", "", "serve the service registry over DNS on this address after composing")
	cmd.Flags().DurationVar(&dnsRefresh, "dns-refresh", 30*time.Second, "how often served registry records are re-read from the platform (0 disables)")

	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
