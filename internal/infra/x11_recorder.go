package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// DesktopPackage is recorded when no window has focus (the desktop is
// showing). It is never a blocking target.
const DesktopPackage = "x11.desktop"

// WindowResolver maps a window's WM_CLASS and PID to a package name.
type WindowResolver interface {
	ResolveWindow(instance, class string, pid int) string
}

// FocusRecorder watches _NET_ACTIVE_WINDOW on the root window and records
// focus changes into an EventLog.
type FocusRecorder struct {
	display  string
	log      *EventLog
	resolver WindowResolver
	logger   *zap.Logger
	now      func() time.Time
	tracker  focusTracker
}

// NewFocusRecorder creates a recorder for display ("" uses $DISPLAY).
func NewFocusRecorder(display string, log *EventLog, resolver WindowResolver, logger *zap.Logger) *FocusRecorder {
	return &FocusRecorder{
		display:  display,
		log:      log,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Run records focus changes until ctx is canceled or the X connection drops.
func (r *FocusRecorder) Run(ctx context.Context) error {
	c, err := dialX11(r.display, atomActiveWindow, atomWMPID, atomWMClass)
	if err != nil {
		return err
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	err = xproto.ChangeWindowAttributesChecked(c.conn, c.root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		return fmt.Errorf("failed to watch root window: %w", err)
	}

	r.logger.Info("focus recorder started")
	r.recordActive(c)

	for {
		ev, xerr := c.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New("X connection closed")
		}
		if xerr != nil {
			r.logger.Debug("X error", zap.String("error", xerr.Error()))
			continue
		}
		if pn, ok := ev.(xproto.PropertyNotifyEvent); ok && pn.Atom == c.atoms[atomActiveWindow] {
			r.recordActive(c)
		}
	}
}

func (r *FocusRecorder) recordActive(c *x11Conn) {
	pkg := DesktopPackage
	if win := c.activeWindow(); win != 0 {
		instance, class := c.windowClass(win)
		if resolved := r.resolver.ResolveWindow(instance, class, c.windowPID(win)); resolved != "" {
			pkg = resolved
		}
	}
	for _, e := range r.tracker.switchTo(pkg, r.now()) {
		r.log.Record(e)
	}
}

// focusTracker turns a sequence of focused packages into usage events.
type focusTracker struct {
	current string
}

// switchTo returns the events for focus moving to pkg: the previous
// package goes to the background, pkg comes to the foreground.
// Refocusing the current package yields nothing.
func (t *focusTracker) switchTo(pkg string, now time.Time) []domain.UsageEvent {
	if pkg == t.current {
		return nil
	}
	var events []domain.UsageEvent
	if t.current != "" {
		events = append(events, domain.UsageEvent{
			Package:   t.current,
			Kind:      domain.EventMoveToBackground,
			Timestamp: now,
		})
	}
	events = append(events, domain.UsageEvent{
		Package:   pkg,
		Kind:      domain.EventMoveToForeground,
		Timestamp: now,
	})
	t.current = pkg
	return events
}
