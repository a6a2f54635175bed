package daemon

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// mockDetector implements Detector for testing
type mockDetector struct {
	mu  sync.Mutex
	pkg string
	ok  bool
}

func (m *mockDetector) Detect(time.Time) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pkg, m.ok
}

func (m *mockDetector) set(pkg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pkg, m.ok = pkg, pkg != ""
}

// mockCatalog implements domain.AppCatalog for testing
type mockCatalog struct {
	apps []domain.InstalledApp
	err  error
}

func (m *mockCatalog) InstalledApps() ([]domain.InstalledApp, error) {
	return m.apps, m.err
}

// mockNotifier implements domain.StatusNotifier for testing
type mockNotifier struct {
	mu      sync.Mutex
	title   string
	body    string
	shows   int
	cleared int
}

func (m *mockNotifier) ShowStatus(title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title, m.body = title, body
	m.shows++
	return nil
}

func (m *mockNotifier) ClearStatus() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	return nil
}

func (m *mockNotifier) snapshot() (title, body string, shows, cleared int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title, m.body, m.shows, m.cleared
}

// mockSettingsStore implements domain.SettingsStore for testing
type mockSettingsStore struct {
	mu        sync.Mutex
	rules     string
	blocklist []string
	settings  domain.Settings
	daemon    *domain.DaemonInfo
	saveErr   error
	loads     int
}

var _ domain.SettingsStore = (*mockSettingsStore)(nil)

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{
		rules:    "[]",
		settings: domain.Settings{TapsToClose: 3, TapTimeout: time.Second},
	}
}

func (m *mockSettingsStore) SaveRuleDescriptors(raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rules = raw
	return nil
}

func (m *mockSettingsStore) LoadRuleDescriptors() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.rules, nil
}

func (m *mockSettingsStore) SaveBlocklist(packages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.blocklist = append([]string(nil), packages...)
	return nil
}

func (m *mockSettingsStore) LoadBlocklist() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blocklist...), nil
}

func (m *mockSettingsStore) SetMonitoringEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.MonitoringEnabled = enabled
	return nil
}

func (m *mockSettingsStore) SetTapConfig(taps int, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings.TapsToClose, m.settings.TapTimeout = taps, timeout
	return nil
}

func (m *mockSettingsStore) Settings() (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *mockSettingsStore) RegisterDaemon(info domain.DaemonInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daemon = &info
	return nil
}

func (m *mockSettingsStore) GetDaemon() (*domain.DaemonInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.daemon == nil {
		return nil, nil
	}
	info := *m.daemon
	return &info, nil
}

func (m *mockSettingsStore) ClearDaemon() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daemon = nil
	return nil
}

func (m *mockSettingsStore) Close() error { return nil }

func (m *mockSettingsStore) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	pid int
}

func (m *mockProcessManager) NameOf(int) (string, error)  { return "", errors.New("not found") }
func (m *mockProcessManager) Terminate(int) error         { return nil }
func (m *mockProcessManager) Signal(int, os.Signal) error { return nil }
func (m *mockProcessManager) IsRunning(pid int) bool      { return pid == m.pid }
func (m *mockProcessManager) GetCurrentPID() int          { return m.pid }
