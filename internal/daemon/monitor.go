// Package daemon runs the foreground monitor and the overlay daemon process.
package daemon

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/usecase"
)

// Status notification shown while monitoring.
const (
	StatusTitle      = "Focus Mode Active"
	statusBodyFormat = "Monitoring with %d blocking rules"
)

// Detector reports the current foreground package.
type Detector interface {
	Detect(now time.Time) (string, bool)
}

// MonitorConfig holds monitor loop configuration.
type MonitorConfig struct {
	PollInterval time.Duration // Delay between ticks (default 800ms)
	UsageWindow  time.Duration // Lookback of each detection (default 5s)
	SendTimeout  time.Duration // Max wait for the presenter to accept a hide on stop
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: 800 * time.Millisecond,
		UsageWindow:  usecase.DefaultUsageWindow,
		SendTimeout:  time.Second,
	}
}

// Monitor polls the foreground app and tells the presenter what to show.
// Match state is confined to the loop goroutine.
type Monitor struct {
	config   MonitorConfig
	detector Detector
	matcher  *policy.Matcher
	rules    *policy.Store
	names    *usecase.AppNameCache
	catalog  domain.AppCatalog
	notifier domain.StatusNotifier
	intents  chan<- domain.OverlayIntent
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	dismissed chan string

	// loop goroutine only
	shown          bool
	shownPattern   string
	lastForeground string
}

// NewMonitor creates a stopped monitor. notifier may be nil.
func NewMonitor(
	config MonitorConfig,
	detector Detector,
	matcher *policy.Matcher,
	rules *policy.Store,
	names *usecase.AppNameCache,
	catalog domain.AppCatalog,
	notifier domain.StatusNotifier,
	intents chan<- domain.OverlayIntent,
	logger *zap.Logger,
) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMonitorConfig().PollInterval
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultMonitorConfig().SendTimeout
	}
	return &Monitor{
		config:    config,
		detector:  detector,
		matcher:   matcher,
		rules:     rules,
		names:     names,
		catalog:   catalog,
		notifier:  notifier,
		intents:   intents,
		logger:    logger,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6f766572)),
		now:       time.Now,
		dismissed: make(chan string, 1),
	}
}

// Start launches the loop. Calling Start while running is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.logger.Debug("monitor already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(loopCtx, done)
}

// Stop halts the loop, waits for it to exit and dismisses the overlay.
// The dismiss is sent even when the monitor was not running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	select {
	case m.intents <- domain.OverlayIntent{Kind: domain.IntentHide}:
	case <-time.After(m.config.SendTimeout):
		m.logger.Warn("presenter did not accept hide intent")
	}

	if m.notifier != nil {
		if err := m.notifier.ClearStatus(); err != nil {
			m.logger.Warn("failed to clear status notification", zap.Error(err))
		}
	}
	m.logger.Info("monitor stopped")
}

// IsRunning reports whether the loop is active. A loop that exited because
// its parent context was cancelled is not running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// NotifyDismissed tells the loop the user closed the overlay shown for
// ruleKey, so the next match is presented again. Only the latest pending
// key is kept. Never blocks.
func (m *Monitor) NotifyDismissed(ruleKey string) {
	for {
		select {
		case m.dismissed <- ruleKey:
			return
		default:
		}
		select {
		case <-m.dismissed:
		default:
		}
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.shown = false
		m.shownPattern = ""
		m.lastForeground = ""

		m.mu.Lock()
		if m.done == done {
			m.cancel()
			m.cancel, m.done = nil, nil
		}
		m.mu.Unlock()
		close(done)
	}()

	// The name cache must be populated before the first match.
	if n, err := m.names.Rebuild(m.catalog); err != nil {
		m.logger.Warn("failed to rebuild app name cache", zap.Error(err))
	} else {
		m.logger.Info("app name cache rebuilt", zap.Int("apps", n))
	}

	enabled := m.rules.Snapshot().EnabledCount()
	m.logger.Info("monitor started",
		zap.Duration("poll_interval", m.config.PollInterval),
		zap.Int("enabled_rules", enabled))
	if m.notifier != nil {
		if err := m.notifier.ShowStatus(StatusTitle, fmt.Sprintf(statusBodyFormat, enabled)); err != nil {
			m.logger.Warn("failed to show status notification", zap.Error(err))
		}
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ruleKey := <-m.dismissed:
			m.handleDismissed(ruleKey)

		case <-timer.C:
			m.tick(ctx)
			timer.Reset(m.config.PollInterval)
		}
	}
}

// handleDismissed forgets the shown overlay if ruleKey still names it.
// A dismissal that raced with a newer Show is stale and ignored.
func (m *Monitor) handleDismissed(ruleKey string) {
	if !m.shown || m.shownPattern != ruleKey {
		m.logger.Debug("ignoring stale dismissal", zap.String("rule", ruleKey))
		return
	}
	m.shown = false
	m.shownPattern = ""
}

// tick runs one detect, match, present cycle.
func (m *Monitor) tick(ctx context.Context) {
	pkg, ok := m.detector.Detect(m.now())
	if !ok {
		return
	}

	if pkg != m.lastForeground {
		m.logger.Debug("foreground changed", zap.String("package", pkg))
		m.lastForeground = pkg
	}

	rule := m.matcher.Match(pkg, m.names, m.rules.Snapshot())
	if rule != nil {
		if m.shown && m.shownPattern == rule.Pattern {
			return
		}
		intent := domain.OverlayIntent{
			Kind:         domain.IntentShow,
			RuleKey:      rule.Pattern,
			Presentation: rule.Presentation(m.rng),
		}
		if !m.send(ctx, intent) {
			return
		}
		m.logger.Info("blocked app detected",
			zap.String("package", pkg),
			zap.String("rule_kind", rule.Kind().String()),
			zap.String("pattern", rule.Pattern))
		m.shown = true
		m.shownPattern = rule.Pattern
		return
	}

	if m.shown {
		if !m.send(ctx, domain.OverlayIntent{Kind: domain.IntentHide}) {
			return
		}
		m.shown = false
		m.shownPattern = ""
	}
}

func (m *Monitor) send(ctx context.Context, intent domain.OverlayIntent) bool {
	select {
	case m.intents <- intent:
		return true
	case <-ctx.Done():
		return false
	}
}
