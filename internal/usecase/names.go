package usecase

import (
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// AppNameCache maps package names to display labels.
// It is rebuilt wholesale, never updated entry by entry.
type AppNameCache struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewAppNameCache creates an empty cache.
func NewAppNameCache() *AppNameCache {
	return &AppNameCache{names: make(map[string]string)}
}

// DisplayName returns the label for packageName.
func (c *AppNameCache) DisplayName(packageName string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[packageName]
	return name, ok
}

// Len returns the number of cached labels.
func (c *AppNameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Rebuild replaces the cache with the catalog's current content.
// On error the previous content is kept.
func (c *AppNameCache) Rebuild(catalog domain.AppCatalog) (int, error) {
	apps, err := catalog.InstalledApps()
	if err != nil {
		return 0, fmt.Errorf("failed to list installed apps: %w", err)
	}

	names := make(map[string]string, len(apps))
	for _, app := range apps {
		names[app.Package] = app.DisplayName
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
	return len(names), nil
}
