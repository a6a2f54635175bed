package domain

import (
	"os"
	"time"
)

// UsageEventSource exposes recent focus-change events.
// Implementation: in-memory log fed by the X11 focus recorder.
type UsageEventSource interface {
	// QueryEvents returns events with start <= Timestamp <= end in chronological order.
	QueryEvents(start, end time.Time) ([]UsageEvent, error)
}

// AppCatalog enumerates installed applications.
// Implementation: XDG .desktop entries.
type AppCatalog interface {
	// InstalledApps returns every launchable application.
	InstalledApps() ([]InstalledApp, error)
}

// OverlaySurface is a full-screen, always-on-top drawing surface.
// All methods must be called from a single goroutine.
type OverlaySurface interface {
	// Open maps the surface (no-op if already open) and returns its measured size.
	Open() (Size, error)

	// MeasureText returns the rendered size of text including padding.
	MeasureText(text string) Size

	// Render replaces the surface content.
	Render(frame Frame) error

	// Taps delivers one value per tap on the surface.
	Taps() <-chan time.Time

	// Close unmaps the surface. Closing a closed surface is a no-op.
	Close() error
}

// Navigator returns the user to the home screen.
type Navigator interface {
	GoHome() error
}

// StatusNotifier publishes the ongoing "monitoring active" status.
type StatusNotifier interface {
	// ShowStatus creates or replaces the status notification.
	ShowStatus(title, body string) error

	// ClearStatus removes the status notification.
	ClearStatus() error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// NameOf returns the executable name of a process.
	NameOf(pid int) (string, error)

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// Signal delivers a signal to a process (SIGHUP reloads the daemon).
	Signal(pid int, sig os.Signal) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// SettingsStore persists configuration pushed by the user.
// Implementation: SQLCipher encrypted SQLite database.
type SettingsStore interface {
	// SaveRuleDescriptors replaces the stored rule list (JSON array of descriptors).
	SaveRuleDescriptors(raw string) error

	// LoadRuleDescriptors returns the stored rule list, "[]" when none.
	LoadRuleDescriptors() (string, error)

	// SaveBlocklist replaces the legacy blocked-package set.
	SaveBlocklist(packages []string) error

	// LoadBlocklist returns the legacy blocked-package set.
	LoadBlocklist() ([]string, error)

	// SetMonitoringEnabled persists whether monitoring should resume on boot.
	SetMonitoringEnabled(enabled bool) error

	// SetTapConfig persists the tap-to-close gesture parameters.
	SetTapConfig(taps int, timeout time.Duration) error

	// Settings returns runtime settings, with defaults for unset values.
	Settings() (Settings, error)

	// RegisterDaemon records the running monitor process.
	RegisterDaemon(info DaemonInfo) error

	// GetDaemon returns the registered monitor process, nil if none.
	GetDaemon() (*DaemonInfo, error)

	// ClearDaemon removes the monitor registration.
	ClearDaemon() error

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of the settings store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
