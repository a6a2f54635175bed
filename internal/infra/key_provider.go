package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

const (
	keyFileName = "settings.key"
	keySize     = 32 // 256-bit SQLCipher key

	// KeyEnvVar supplies the store key directly (hex), e.g. for headless sessions.
	KeyEnvVar = "OVERLAYMON_STORE_KEY"
)

// ErrReadOnlyKey is returned when storing into a provider that cannot persist.
var ErrReadOnlyKey = errors.New("key provider is read-only")

// FileKeyProvider implements domain.KeyProvider using a hex key file
// with 0600 permissions in the data directory.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, keyFileName),
	}
}

// GetKey reads the encryption key from the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return decodeKey(string(encoded))
}

// StoreKey writes the key through a temp file and rename, so a crash never
// leaves a truncated key behind.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	dir := filepath.Dir(p.keyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return fmt.Errorf("failed to create temp key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(hex.EncodeToString(key)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Rename(tmpPath, p.keyPath); err != nil {
		return fmt.Errorf("failed to install key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// EnvKeyProvider implements domain.KeyProvider from an environment variable.
type EnvKeyProvider struct {
	name string
}

// NewEnvKeyProvider reads the key from the named variable.
func NewEnvKeyProvider(name string) *EnvKeyProvider {
	return &EnvKeyProvider{name: name}
}

// GetKey decodes the variable's hex value.
func (p *EnvKeyProvider) GetKey() ([]byte, error) {
	v, ok := os.LookupEnv(p.name)
	if !ok {
		return nil, fmt.Errorf("%s is not set", p.name)
	}
	return decodeKey(v)
}

// StoreKey always fails: the environment is not writable storage.
func (p *EnvKeyProvider) StoreKey([]byte) error {
	return ErrReadOnlyKey
}

// KeyExists reports whether the variable is set.
func (p *EnvKeyProvider) KeyExists() bool {
	v, ok := os.LookupEnv(p.name)
	return ok && v != ""
}

// NewKeyProvider prefers KeyEnvVar when set, else the key file in dataDir.
func NewKeyProvider(dataDir string) domain.KeyProvider {
	env := NewEnvKeyProvider(KeyEnvVar)
	if env.KeyExists() {
		return env
	}
	return NewFileKeyProvider(dataDir)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// GenerateKey creates a new random 256-bit encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey generates and stores a key if one doesn't exist.
// Returns the key (existing or newly generated).
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var (
	_ domain.KeyProvider = (*FileKeyProvider)(nil)
	_ domain.KeyProvider = (*EnvKeyProvider)(nil)
)
