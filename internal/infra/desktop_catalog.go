package infra

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

const (
	desktopGroup  = "[Desktop Entry]"
	desktopSuffix = ".desktop"
)

// DesktopEntry is the subset of a freedesktop .desktop file we use.
type DesktopEntry struct {
	ID             string // desktop file ID, e.g. "org.mozilla.firefox"
	Type           string
	Name           string
	Exec           string
	StartupWMClass string
	NoDisplay      bool
	Hidden         bool
}

// Launchable reports whether the entry is an application shown to users.
func (e DesktopEntry) Launchable() bool {
	return e.Type == "Application" && e.Name != "" && !e.NoDisplay && !e.Hidden
}

// ExecName returns the base name of the program the entry runs.
func (e DesktopEntry) ExecName() string {
	for _, tok := range strings.Fields(e.Exec) {
		tok = strings.Trim(tok, `"'`)
		if tok == "env" || strings.Contains(tok, "=") {
			continue
		}
		return filepath.Base(tok)
	}
	return ""
}

// ParseDesktopEntry reads the [Desktop Entry] group. Localized keys are ignored.
func ParseDesktopEntry(r io.Reader) (DesktopEntry, error) {
	var (
		e       DesktopEntry
		inGroup bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == desktopGroup
			continue
		}
		if !inGroup {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "Type":
			e.Type = value
		case "Name":
			e.Name = value
		case "Exec":
			e.Exec = value
		case "StartupWMClass":
			e.StartupWMClass = value
		case "NoDisplay":
			e.NoDisplay = value == "true"
		case "Hidden":
			e.Hidden = value == "true"
		}
	}
	if err := scanner.Err(); err != nil {
		return DesktopEntry{}, fmt.Errorf("failed to read desktop entry: %w", err)
	}
	return e, nil
}

// DesktopID derives the desktop file ID from a path relative to an
// applications directory ("kde4/okular.desktop" -> "kde4-okular").
func DesktopID(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(strings.ReplaceAll(rel, "/", "-"), desktopSuffix)
}

// DesktopCatalog implements domain.AppCatalog over XDG application
// directories and maps X11 windows to desktop IDs.
type DesktopCatalog struct {
	dirs    []string // applications dirs, highest precedence first
	userDir string   // entries here are user apps, the rest are system apps
	pm      domain.ProcessManager
	logger  *zap.Logger

	mu      sync.RWMutex
	indexed bool
	byClass map[string]string // lower-case StartupWMClass -> ID
	byExec  map[string]string // exec base name -> ID
	byID    map[string]string // lower-case ID -> ID
}

// NewDesktopCatalog creates a catalog over the given applications dirs.
// pm may be nil; it is only used to resolve windows by process name.
func NewDesktopCatalog(dirs []string, userDir string, pm domain.ProcessManager, logger *zap.Logger) *DesktopCatalog {
	return &DesktopCatalog{
		dirs:    dirs,
		userDir: userDir,
		pm:      pm,
		logger:  logger,
	}
}

// NewDesktopCatalogFromEnv uses $XDG_DATA_HOME and $XDG_DATA_DIRS, plus the
// flatpak export directories.
func NewDesktopCatalogFromEnv(home string, getenv func(string) string, pm domain.ProcessManager, logger *zap.Logger) *DesktopCatalog {
	dataHome := xdgDir(getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share"))
	userDir := filepath.Join(dataHome, "applications")

	dirs := []string{
		userDir,
		filepath.Join(dataHome, "flatpak", "exports", "share", "applications"),
	}
	dataDirs := getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		if filepath.IsAbs(d) {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	dirs = append(dirs, "/var/lib/flatpak/exports/share/applications")

	return NewDesktopCatalog(lo.Uniq(dirs), userDir, pm, logger)
}

// Entries scans every directory. An ID found in an earlier directory
// shadows later ones, including Hidden entries which delete the app.
func (c *DesktopCatalog) Entries() ([]DesktopEntry, map[string]bool, error) {
	seen := make(map[string]bool)
	system := make(map[string]bool)
	var entries []DesktopEntry
	scanned := 0

	for _, dir := range c.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), desktopSuffix) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			id := DesktopID(rel)
			if seen[id] {
				return nil
			}
			seen[id] = true

			e, err := c.readEntry(path)
			if err != nil {
				c.logger.Debug("skipping unreadable desktop entry", zap.String("path", path), zap.Error(err))
				return nil
			}
			e.ID = id
			entries = append(entries, e)
			system[id] = dir != c.userDir
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		scanned++
	}
	if scanned == 0 {
		return nil, nil, fmt.Errorf("no application directories configured")
	}
	return entries, system, nil
}

func (c *DesktopCatalog) readEntry(path string) (DesktopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return DesktopEntry{}, err
	}
	defer f.Close()
	return ParseDesktopEntry(f)
}

// InstalledApps returns every launchable application and refreshes the
// window resolution index.
func (c *DesktopCatalog) InstalledApps() ([]domain.InstalledApp, error) {
	entries, system, err := c.Entries()
	if err != nil {
		return nil, err
	}

	apps := make([]domain.InstalledApp, 0, len(entries))
	for _, e := range entries {
		if !e.Launchable() {
			continue
		}
		apps = append(apps, domain.InstalledApp{
			Package:     e.ID,
			DisplayName: e.Name,
			IsSystemApp: system[e.ID],
		})
	}
	c.index(entries)
	return apps, nil
}

func (c *DesktopCatalog) index(entries []DesktopEntry) {
	byClass := make(map[string]string)
	byExec := make(map[string]string)
	byID := make(map[string]string)
	for _, e := range entries {
		if e.Hidden || e.Type != "Application" {
			continue
		}
		if e.StartupWMClass != "" {
			byClass[strings.ToLower(e.StartupWMClass)] = e.ID
		}
		if name := e.ExecName(); name != "" {
			if _, dup := byExec[name]; !dup {
				byExec[name] = e.ID
			}
		}
		byID[strings.ToLower(e.ID)] = e.ID
	}

	c.mu.Lock()
	c.byClass, c.byExec, c.byID = byClass, byExec, byID
	c.indexed = true
	c.mu.Unlock()
}

// ResolveWindow maps a window's WM_CLASS and owning PID to a desktop ID.
// Unknown windows resolve to their lower-case class name.
func (c *DesktopCatalog) ResolveWindow(instance, class string, pid int) string {
	c.mu.RLock()
	indexed := c.indexed
	c.mu.RUnlock()
	if !indexed {
		if _, err := c.InstalledApps(); err != nil {
			c.logger.Debug("failed to index desktop entries", zap.Error(err))
		}
	}

	lowerClass, lowerInstance := strings.ToLower(class), strings.ToLower(instance)

	c.mu.RLock()
	for _, m := range []map[string]string{c.byClass, c.byID} {
		for _, key := range []string{lowerClass, lowerInstance} {
			if id, ok := m[key]; ok && key != "" {
				c.mu.RUnlock()
				return id
			}
		}
	}
	c.mu.RUnlock()

	if pid > 0 && c.pm != nil {
		if name, err := c.pm.NameOf(pid); err == nil {
			c.mu.RLock()
			id, ok := c.byExec[name]
			c.mu.RUnlock()
			if ok {
				return id
			}
		}
	}

	if lowerClass != "" {
		return lowerClass
	}
	return lowerInstance
}

var _ domain.AppCatalog = (*DesktopCatalog)(nil)
