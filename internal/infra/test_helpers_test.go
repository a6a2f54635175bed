package infra

import (
	"errors"
	"os"
	"syscall"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	signals     map[int][]os.Signal
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		signals:     make(map[int][]os.Signal),
	}
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	return "", errors.New("not found")
}

func (m *mockProcessManager) Terminate(pid int) error {
	return m.Signal(pid, syscall.SIGTERM)
}

func (m *mockProcessManager) Signal(pid int, sig os.Signal) error {
	if !m.runningPIDs[pid] {
		return os.ErrProcessDone
	}
	m.signals[pid] = append(m.signals[pid], sig)
	if sig == syscall.SIGTERM {
		delete(m.runningPIDs, pid)
	}
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}
