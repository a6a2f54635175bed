package daemon

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/overlay"
)

// Recorder is a background producer of focus events (e.g. the X11 recorder).
type Recorder interface {
	Run(ctx context.Context) error
}

// Purger drops cached data on memory pressure.
type Purger interface {
	Clear()
}

// Runtime is the daemon process: it registers itself, runs the recorder,
// the presenter and the monitor, and reacts to control signals.
//
//	SIGHUP          reload rules and blocklist from the store
//	SIGUSR1         clear the image cache
//	SIGINT/SIGTERM  stop
type Runtime struct {
	controller *Controller
	monitor    *Monitor
	presenter  *overlay.Presenter
	intents    <-chan domain.OverlayIntent
	recorder   Recorder
	cache      Purger
	store      domain.SettingsStore
	pm         domain.ProcessManager
	version    string
	logger     *zap.Logger
}

// NewRuntime wires the daemon parts. recorder and cache may be nil.
// intents must be the channel the monitor writes to.
func NewRuntime(
	controller *Controller,
	monitor *Monitor,
	presenter *overlay.Presenter,
	intents <-chan domain.OverlayIntent,
	recorder Recorder,
	cache Purger,
	store domain.SettingsStore,
	pm domain.ProcessManager,
	version string,
	logger *zap.Logger,
) *Runtime {
	presenter.OnUserDismiss(monitor.NotifyDismissed)
	return &Runtime{
		controller: controller,
		monitor:    monitor,
		presenter:  presenter,
		intents:    intents,
		recorder:   recorder,
		cache:      cache,
		store:      store,
		pm:         pm,
		version:    version,
		logger:     logger,
	}
}

// Run blocks until ctx is canceled or a stop signal arrives.
func (r *Runtime) Run(ctx context.Context, signals <-chan os.Signal) error {
	info := domain.DaemonInfo{
		PID:        r.pm.GetCurrentPID(),
		StartedAt:  time.Now(),
		AppVersion: r.version,
	}
	if err := r.store.RegisterDaemon(info); err != nil {
		r.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := r.store.ClearDaemon(); err != nil {
			r.logger.Warn("failed to clear daemon registration", zap.Error(err))
		}
	}()

	r.logger.Info("overlay daemon started",
		zap.Int("pid", info.PID),
		zap.String("version", r.version))

	if err := r.controller.Reload(); err != nil {
		r.logger.Warn("failed to load rules, starting with none", zap.Error(err))
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if r.recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.recorder.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("focus recorder stopped", zap.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.presenter.Run(bgCtx, r.intents)
	}()

	defer func() {
		// Stop sends the final hide while the presenter is still draining.
		_ = r.controller.Stop()
		cancelBg()
		wg.Wait()
		r.logger.Info("overlay daemon stopped")
	}()

	if err := r.controller.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("overlay daemon stopping")
			return ctx.Err()

		case sig := <-signals:
			if stop := r.handleSignal(sig); stop {
				r.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
				return nil
			}
		}
	}
}

func (r *Runtime) handleSignal(sig os.Signal) (stop bool) {
	switch sig {
	case syscall.SIGHUP:
		if err := r.controller.Reload(); err != nil {
			r.logger.Warn("failed to reload rules", zap.Error(err))
		}
	case syscall.SIGUSR1:
		if r.cache != nil {
			r.cache.Clear()
		}
	case syscall.SIGINT, syscall.SIGTERM:
		return true
	default:
		r.logger.Debug("ignoring signal", zap.String("signal", sig.String()))
	}
	return false
}
