package daemon

import (
	"context"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/overlay"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/usecase"
)

// stubSurface implements domain.OverlaySurface for testing
type stubSurface struct {
	mu      sync.Mutex
	open    bool
	renders int
	taps    chan time.Time
}

func (s *stubSurface) Open() (domain.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return domain.Size{Width: 800, Height: 600}, nil
}

func (s *stubSurface) MeasureText(text string) domain.Size {
	return domain.Size{Width: 8 * len(text), Height: 16}
}

func (s *stubSurface) Render(domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders++
	return nil
}

func (s *stubSurface) Taps() <-chan time.Time { return s.taps }

func (s *stubSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *stubSurface) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// nopImages implements overlay.ImageSource for testing
type nopImages struct{}

func (nopImages) Get(string) image.Image { return nil }

// nopNavigator implements domain.Navigator for testing
type nopNavigator struct{}

func (nopNavigator) GoHome() error { return nil }

// countingPurger implements Purger for testing
type countingPurger struct{ clears atomic.Int32 }

func (p *countingPurger) Clear() { p.clears.Add(1) }

type runtimeFixture struct {
	runtime  *Runtime
	store    *mockSettingsStore
	detector *mockDetector
	surface  *stubSurface
	purger   *countingPurger
	signals  chan os.Signal
}

func newRuntimeFixture(t *testing.T) *runtimeFixture {
	t.Helper()
	f := &runtimeFixture{
		store:    newMockSettingsStore(),
		detector: &mockDetector{},
		surface:  &stubSurface{taps: make(chan time.Time)},
		purger:   &countingPurger{},
		signals:  make(chan os.Signal, 1),
	}

	rules := policy.NewStore()
	catalog := &mockCatalog{apps: testApps}
	intents := make(chan domain.OverlayIntent, 8)

	cfg := DefaultMonitorConfig()
	cfg.PollInterval = 5 * time.Millisecond
	monitor := NewMonitor(cfg, f.detector,
		policy.NewMatcher(policy.DefaultMatcherConfig(domain.AppID)),
		rules, usecase.NewAppNameCache(), catalog, nil, intents, zap.NewNop())
	controller := NewController(f.store, rules, catalog, monitor, zap.NewNop())
	presenter := overlay.NewPresenter(overlay.DefaultPresenterConfig(), f.surface, nopImages{}, nopNavigator{}, zap.NewNop())

	f.runtime = NewRuntime(controller, monitor, presenter, intents, nil, f.purger,
		f.store, &mockProcessManager{pid: 4242}, "1.0.0", zap.NewNop())
	return f
}

func (f *runtimeFixture) start() <-chan error {
	done := make(chan error, 1)
	go func() { done <- f.runtime.Run(context.Background(), f.signals) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("runtime did not stop")
		return nil
	}
}

func TestRuntime_RegistersAndClears(t *testing.T) {
	f := newRuntimeFixture(t)
	done := f.start()

	require.Eventually(t, func() bool {
		info, _ := f.store.GetDaemon()
		return info != nil
	}, 2*time.Second, 5*time.Millisecond)

	info, _ := f.store.GetDaemon()
	assert.Equal(t, 4242, info.PID)
	assert.Equal(t, "1.0.0", info.AppVersion)

	f.signals <- syscall.SIGTERM
	require.NoError(t, waitDone(t, done))

	info, _ = f.store.GetDaemon()
	assert.Nil(t, info)
}

func TestRuntime_SignalsReloadAndPurge(t *testing.T) {
	f := newRuntimeFixture(t)
	done := f.start()

	require.Eventually(t, func() bool { return f.store.loadCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	f.signals <- syscall.SIGHUP
	require.Eventually(t, func() bool { return f.store.loadCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	f.signals <- syscall.SIGUSR1
	require.Eventually(t, func() bool { return f.purger.clears.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	f.signals <- syscall.SIGINT
	require.NoError(t, waitDone(t, done))
}

func TestRuntime_ShowsOverlayAndClosesOnShutdown(t *testing.T) {
	f := newRuntimeFixture(t)
	f.store.rules = `[{"type": 1, "pattern": "TikTok"}]`
	f.detector.set(tiktokPkg)
	done := f.start()

	require.Eventually(t, f.surface.isOpen, 2*time.Second, 5*time.Millisecond)

	f.signals <- syscall.SIGTERM
	require.NoError(t, waitDone(t, done))
	assert.False(t, f.surface.isOpen())
}

func TestRuntime_ContextCancel(t *testing.T) {
	f := newRuntimeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runtime.Run(ctx, f.signals) }()

	require.Eventually(t, func() bool {
		info, _ := f.store.GetDaemon()
		return info != nil
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
}
