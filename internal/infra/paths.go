package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

const appDirName = "overlaymon"

// Paths holds the on-disk locations used by the CLI and the daemon.
type Paths struct {
	DataDir  string // Encrypted settings store and its key
	StateDir string // Logs
	LogPath  string // Daemon log file (rotated)
	ImageDir string // Suggested location for overlay images
}

// DetectPaths resolves paths from the XDG base directory variables of the
// real user (SUDO_USER aware).
func DetectPaths() *Paths {
	return PathsFor(GetRealUserHome(), os.Getenv)
}

// PathsFor resolves paths for home using getenv for XDG overrides.
// Relative XDG values are ignored, as XDG Base Directory requires.
func PathsFor(home string, getenv func(string) string) *Paths {
	dataHome := xdgDir(getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share"))
	stateHome := xdgDir(getenv("XDG_STATE_HOME"), filepath.Join(home, ".local", "state"))

	dataDir := filepath.Join(dataHome, appDirName)
	stateDir := filepath.Join(stateHome, appDirName)
	return &Paths{
		DataDir:  dataDir,
		StateDir: stateDir,
		LogPath:  filepath.Join(stateDir, appDirName+".log"),
		ImageDir: filepath.Join(dataDir, "images"),
	}
}

func xdgDir(value, fallback string) string {
	if value == "" || !filepath.IsAbs(value) {
		return fallback
	}
	return value
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
