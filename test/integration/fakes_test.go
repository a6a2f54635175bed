//go:build integration

package integration

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/infra"
)

// fakeSurface records what the presenter draws instead of opening a window.
type fakeSurface struct {
	mu      sync.Mutex
	open    bool
	renders int
	last    domain.Frame
	taps    chan time.Time
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{taps: make(chan time.Time, 8)}
}

func (s *fakeSurface) Open() (domain.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return domain.Size{Width: 1920, Height: 1080}, nil
}

func (s *fakeSurface) MeasureText(text string) domain.Size {
	return domain.Size{Width: 12 * len(text), Height: 40}
}

func (s *fakeSurface) Render(frame domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders++
	s.last = frame
	return nil
}

func (s *fakeSurface) Taps() <-chan time.Time { return s.taps }

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *fakeSurface) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSurface) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

func (s *fakeSurface) LastFrame() domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// homeNavigator behaves like the window manager: going home focuses the desktop.
type homeNavigator struct {
	events *infra.EventLog
	mu     sync.Mutex
	calls  int
}

func (n *homeNavigator) GoHome() error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	n.events.Record(domain.UsageEvent{
		Package:   infra.DesktopPackage,
		Kind:      domain.EventMoveToForeground,
		Timestamp: time.Now(),
	})
	return nil
}

func (n *homeNavigator) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// fakeNotifier keeps the current status notification.
type fakeNotifier struct {
	mu    sync.Mutex
	title string
	body  string
}

func (n *fakeNotifier) ShowStatus(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.title, n.body = title, body
	return nil
}

func (n *fakeNotifier) ClearStatus() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.title, n.body = "", ""
	return nil
}

func (n *fakeNotifier) Body() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.body
}
