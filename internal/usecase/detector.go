// Package usecase contains application business logic.
package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// DefaultUsageWindow is how far back each detection looks.
const DefaultUsageWindow = 5 * time.Second

// ForegroundDetector finds the most recent foreground package in a short
// window of focus events.
type ForegroundDetector struct {
	source domain.UsageEventSource
	window time.Duration
	logger *zap.Logger
}

// NewForegroundDetector creates a detector over source.
func NewForegroundDetector(source domain.UsageEventSource, window time.Duration, logger *zap.Logger) *ForegroundDetector {
	if window <= 0 {
		window = DefaultUsageWindow
	}
	return &ForegroundDetector{
		source: source,
		window: window,
		logger: logger,
	}
}

// Detect returns the package of the latest foreground event in
// [now-window, now]. Returns false when the window holds no qualifying event;
// the caller simply tries again on its next poll.
func (d *ForegroundDetector) Detect(now time.Time) (string, bool) {
	events, err := d.source.QueryEvents(now.Add(-d.window), now)
	if err != nil {
		d.logger.Debug("usage event query failed", zap.Error(err))
		return "", false
	}

	var (
		latestPkg  string
		latestTime time.Time
		found      bool
	)
	for _, e := range events {
		if e.Kind != domain.EventMoveToForeground && e.Kind != domain.EventActivityResumed {
			continue
		}
		if !found || e.Timestamp.After(latestTime) {
			latestTime = e.Timestamp
			latestPkg = e.Package
			found = true
		}
	}
	return latestPkg, found
}
