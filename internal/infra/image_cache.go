package infra

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/lru"
)

// DefaultImageCacheBytes is the decoded-size budget of the overlay image cache.
const DefaultImageCacheBytes = 10 * 1024 * 1024 // 10MB

// ImageCache keeps decoded overlay images keyed by file path.
// Entries are evicted least-recently-used first once their decoded size
// (4 bytes per pixel) exceeds the budget.
type ImageCache struct {
	cache   *lru.Cache[string, image.Image]
	homeDir string
	logger  *zap.Logger
}

// NewImageCache creates a cache with the given budget in bytes.
func NewImageCache(maxBytes int64, logger *zap.Logger) *ImageCache {
	home, _ := os.UserHomeDir()
	return NewImageCacheWithHome(maxBytes, home, logger)
}

// NewImageCacheWithHome creates a cache with a custom home directory (for testing).
func NewImageCacheWithHome(maxBytes int64, home string, logger *zap.Logger) *ImageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := lru.New[string, image.Image](maxBytes, func(_ string, img image.Image) int64 { return DecodedSize(img) })
	cache.OnEvict(func(path string, img image.Image) {
		logger.Debug("overlay image evicted",
			zap.String("path", path),
			zap.Int64("bytes", DecodedSize(img)))
	})
	return &ImageCache{
		cache:   cache,
		homeDir: home,
		logger:  logger,
	}
}

// DecodedSize returns the in-memory size of img as a 32-bit ARGB bitmap.
func DecodedSize(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Get returns the image at path, decoding and caching it on a miss.
// A missing or undecodable file returns nil.
func (c *ImageCache) Get(path string) image.Image {
	if path == "" {
		return nil
	}
	if img, ok := c.cache.Get(path); ok {
		return img
	}

	img, err := c.decode(path)
	if err != nil {
		c.logger.Debug("overlay image unavailable",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}
	c.cache.Put(path, img)
	return img
}

// Clear drops every cached image (memory pressure).
func (c *ImageCache) Clear() {
	n := c.cache.Len()
	c.cache.Clear()
	c.logger.Info("image cache cleared", zap.Int("entries", n))
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.cache.Len()
}

// SizeBytes returns the decoded size of all cached images.
func (c *ImageCache) SizeBytes() int64 {
	return c.cache.Cost()
}

func (c *ImageCache) decode(path string) (image.Image, error) {
	f, err := os.Open(c.ExpandHome(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ExpandHome expands ~ to the user's home directory.
func (c *ImageCache) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(c.homeDir, path[2:])
	}
	if path == "~" {
		return c.homeDir
	}
	return path
}
