package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// DaemonCommand is the hidden CLI command the spawned process runs.
const DaemonCommand = "daemon"

// StartDaemon spawns the overlay daemon from the current executable.
func StartDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return StartDaemonWithPath(executable)
}

// StartDaemonWithPath spawns binaryPath as a detached daemon process.
func StartDaemonWithPath(binaryPath string) error {
	cmd := daemonCommand(binaryPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	// The child outlives us; release it so it is not left as a zombie.
	return cmd.Process.Release()
}

func daemonCommand(binaryPath string) *exec.Cmd {
	cmd := exec.Command(binaryPath, DaemonCommand)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// The daemon inherits DISPLAY and DBUS_SESSION_BUS_ADDRESS from the
	// environment; stdio is dropped, logs go to the log file.
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}
