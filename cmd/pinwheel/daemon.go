package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/pinwheel/internal/apply"
	"github.com/1broseidon/pinwheel/internal/config"
	"github.com/1broseidon/pinwheel/internal/confwatch"
	"github.com/1broseidon/pinwheel/internal/daemon"
	"github.com/1broseidon/pinwheel/internal/platform"
	"github.com/1broseidon/pinwheel/internal/rules"
	"github.com/1broseidon/pinwheel/internal/window"
	"github.com/spf13/cobra"
)

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultConfigPath()
}

// loadRules loads and compiles the configuration at path.
func loadRules(path string) (*config.LoadResult, *rules.RuleSet, error) {
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	set, err := rules.Compile(res.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile rules: %w", err)
	}
	return res, set, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := stderrLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	path, err := resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	res, set, err := loadRules(path)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "path", path, "rules", set.Len(), "files", len(res.Files))

	transport, err := platform.NewLinuxTransport()
	if err != nil {
		return err
	}
	defer transport.Disconnect()

	var procs window.ProcessNamer
	if fs, err := window.NewDefaultProcFS(); err != nil {
		logger.Warn("process table unavailable, process matchers will not match", "error", err)
	} else {
		procs = fs
	}
	resolver, err := window.NewResolver(transport, procs, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize property resolver: %w", err)
	}

	mode := apply.Live
	if dryRun {
		mode = apply.DryRun
	}
	applier, err := apply.New(transport, logger, mode)
	if err != nil {
		return fmt.Errorf("failed to initialize applier: %w", err)
	}

	store := rules.NewStore(set)
	reloader := daemon.NewReloader(path, store, logger)

	var configEvents <-chan confwatch.Event
	watcher, err := confwatch.New(logger, confwatch.DefaultDebounce)
	if err != nil {
		logger.Warn("config watcher unavailable, reload with SIGHUP", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Track(res.Files); err != nil {
			logger.Warn("failed to watch config files", "error", err)
		}
		reloader.OnFiles = watcher.Track
		configEvents = watcher.Events()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	reactor := daemon.New(daemon.Options{
		Transport:    transport,
		Events:       transport.Events(),
		Signals:      signals,
		ConfigEvents: configEvents,
		Resolver:     resolver,
		Applier:      applier,
		Rules:        store,
		Reloader:     reloader,
		Logger:       logger,
	})
	return reactor.Run(context.Background())
}
