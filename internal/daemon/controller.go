package daemon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
)

// ErrNoMonitor is returned by lifecycle calls on a controller built without
// a monitor (configuration-only CLI processes).
var ErrNoMonitor = errors.New("controller has no monitor")

// Controller is the inbound surface: configuration pushes, lifecycle and
// the installed-app listing.
type Controller struct {
	store   domain.SettingsStore
	rules   *policy.Store
	catalog domain.AppCatalog
	monitor *Monitor
	selfID  string
	logger  *zap.Logger
}

// NewController creates a controller. monitor may be nil.
func NewController(
	store domain.SettingsStore,
	rules *policy.Store,
	catalog domain.AppCatalog,
	monitor *Monitor,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		store:   store,
		rules:   rules,
		catalog: catalog,
		monitor: monitor,
		selfID:  domain.AppID,
		logger:  logger,
	}
}

// ReplaceRules validates raw descriptors, persists them and swaps them in.
// A malformed list leaves both the store and the active rules untouched.
func (c *Controller) ReplaceRules(raw string) (int, error) {
	rules, err := policy.ParseDescriptors(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid rule descriptors: %w", err)
	}

	encoded, err := policy.EncodeDescriptors(rules)
	if err != nil {
		return 0, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := c.store.SaveRuleDescriptors(encoded); err != nil {
		return 0, fmt.Errorf("failed to save rules: %w", err)
	}

	c.install(rules)
	return len(rules), nil
}

// ReplaceBlocklist persists and swaps in the legacy blocked-package set.
func (c *Controller) ReplaceBlocklist(packages []string) error {
	clean := normalizePackages(packages)
	if err := c.store.SaveBlocklist(clean); err != nil {
		return fmt.Errorf("failed to save blocklist: %w", err)
	}
	c.rules.ReplaceLegacy(clean)
	c.logger.Info("blocklist replaced", zap.Int("packages", len(clean)))
	return nil
}

// Reload installs the rules and blocklist currently in the store.
func (c *Controller) Reload() error {
	raw, err := c.store.LoadRuleDescriptors()
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	rules, err := policy.ParseDescriptors(raw)
	if err != nil {
		return fmt.Errorf("stored rules are invalid: %w", err)
	}

	packages, err := c.store.LoadBlocklist()
	if err != nil {
		return fmt.Errorf("failed to load blocklist: %w", err)
	}

	c.install(rules)
	c.rules.ReplaceLegacy(packages)
	return nil
}

func (c *Controller) install(rules []policy.Rule) {
	for _, r := range rules {
		if re, ok := r.Predicate.(policy.PackageRegex); ok && re.Err() != nil {
			c.logger.Warn("regex rule will never match",
				zap.String("pattern", r.Pattern), zap.Error(re.Err()))
		}
	}
	c.rules.ReplaceRules(rules)
	c.logger.Info("rules replaced",
		zap.Int("rules", len(rules)),
		zap.Int("enabled", c.rules.Snapshot().EnabledCount()))
}

// Rules returns the active rules.
func (c *Controller) Rules() []policy.Rule {
	return c.rules.Snapshot().Rules
}

// ExportRules returns the active rules as wire descriptors.
func (c *Controller) ExportRules() (string, error) {
	return policy.EncodeDescriptors(c.Rules())
}

// Start begins monitoring.
func (c *Controller) Start(ctx context.Context) error {
	if c.monitor == nil {
		return ErrNoMonitor
	}
	c.monitor.Start(ctx)
	return nil
}

// Stop ends monitoring and dismisses any overlay.
func (c *Controller) Stop() error {
	if c.monitor == nil {
		return ErrNoMonitor
	}
	c.monitor.Stop()
	return nil
}

// IsRunning reports whether monitoring is active in this process.
func (c *Controller) IsRunning() bool {
	return c.monitor != nil && c.monitor.IsRunning()
}

// ListInstalledApps returns launchable apps sorted by lower-case display
// name, one entry per package, without the host application.
func (c *Controller) ListInstalledApps() ([]domain.InstalledApp, error) {
	apps, err := c.catalog.InstalledApps()
	if err != nil {
		return nil, fmt.Errorf("failed to list installed apps: %w", err)
	}

	out := lo.UniqBy(lo.Filter(apps, func(app domain.InstalledApp, _ int) bool {
		return app.Package != "" && app.Package != c.selfID
	}), func(app domain.InstalledApp) string {
		return app.Package
	})

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out, nil
}

// SetTapConfig persists the tap-to-close gesture. taps 0 disables it.
// The running presenter picks it up on the next daemon start.
func (c *Controller) SetTapConfig(taps int, timeout time.Duration) error {
	if taps < 0 {
		return fmt.Errorf("taps must be >= 0, got %d", taps)
	}
	if timeout <= 0 {
		return fmt.Errorf("tap timeout must be positive, got %s", timeout)
	}
	if err := c.store.SetTapConfig(taps, timeout); err != nil {
		return fmt.Errorf("failed to save tap config: %w", err)
	}
	return nil
}

// normalizePackages trims names and drops empties and duplicates, keeping order.
func normalizePackages(packages []string) []string {
	trimmed := lo.Map(packages, func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(trimmed))
}
