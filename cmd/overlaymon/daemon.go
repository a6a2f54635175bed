package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/overlay"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/usecase"
)

// intentBuffer is the capacity of the monitor to presenter channel.
const intentBuffer = 4

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()

	// Set up logger (writes to the rotated state log)
	logger := createLogger(paths.LogPath)
	defer func() { _ = logger.Sync() }()

	store, err := openStore(paths)
	if err != nil {
		logger.Error("failed to open settings store", zap.Error(err))
		return err
	}
	defer store.Close()

	settings, err := store.Settings()
	if err != nil {
		logger.Warn("failed to read settings, using defaults", zap.Error(err))
	}

	// Initialize infrastructure
	pm := infra.NewProcessManager()
	catalog := infra.NewDesktopCatalogFromEnv(infra.GetRealUserHome(), os.Getenv, pm, logger)
	events := infra.NewEventLog(infra.DefaultEventRetention, infra.DefaultEventCapacity)
	recorder := infra.NewFocusRecorder(displayName, events, catalog, logger)
	images := infra.NewImageCache(infra.DefaultImageCacheBytes, logger)
	surface := infra.NewX11Surface(displayName, infra.NewFrameComposer(infra.DefaultFrameComposerConfig()), logger)
	navigator := infra.NewX11Navigator(displayName)

	var notifier domain.StatusNotifier
	if n, err := infra.NewDBusNotifier(logger); err != nil {
		logger.Warn("status notification unavailable", zap.Error(err))
	} else {
		defer n.Close()
		notifier = n
	}

	// Matching
	matcherConfig := policy.DefaultMatcherConfig(domain.AppID)
	matcherConfig.ExcludedPackages = append(matcherConfig.ExcludedPackages, infra.DesktopPackage)
	matcher := policy.NewMatcher(matcherConfig)
	rules := policy.NewStore()
	names := usecase.NewAppNameCache()
	monitorConfig := daemon.DefaultMonitorConfig()
	detector := usecase.NewForegroundDetector(events, monitorConfig.UsageWindow, logger)

	intents := make(chan domain.OverlayIntent, intentBuffer)
	monitor := daemon.NewMonitor(
		monitorConfig,
		detector,
		matcher,
		rules,
		names,
		catalog,
		notifier,
		intents,
		logger,
	)

	presenterConfig := overlay.DefaultPresenterConfig()
	if settings.TapTimeout > 0 {
		presenterConfig.TapsToClose = settings.TapsToClose
		presenterConfig.TapTimeout = settings.TapTimeout
	}
	presenter := overlay.NewPresenter(presenterConfig, surface, images, navigator, logger)

	controller := daemon.NewController(store, rules, catalog, monitor, logger)
	runtime := daemon.NewRuntime(
		controller,
		monitor,
		presenter,
		intents,
		recorder,
		images,
		store,
		pm,
		Version,
		logger,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	if err := runtime.Run(context.Background(), sigChan); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon exited: %w", err)
	}
	return nil
}
