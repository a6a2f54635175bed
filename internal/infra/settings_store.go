package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	settingsDBName = "settings.db"

	metaMonitoringEnabled = "monitoring_enabled"
	metaTapsToClose       = "taps_to_close"
	metaTapTimeoutMs      = "tap_timeout_ms"
)

// Tap gesture defaults used when nothing was configured.
const (
	DefaultTapsToClose = 3
	DefaultTapTimeout  = time.Second
)

// EncryptedSettingsStore implements domain.SettingsStore using a SQLCipher
// encrypted SQLite database.
type EncryptedSettingsStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedSettingsStore opens (or creates) the settings database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedSettingsStore(dataDir string, key []byte) (*EncryptedSettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, settingsDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// The CLI and the daemon open the file concurrently.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedSettingsStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedSettingsStore) createTables() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		descriptors TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blocklist (
		package TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daemon_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		app_version TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- rules ---

// SaveRuleDescriptors replaces the stored rule list.
func (s *EncryptedSettingsStore) SaveRuleDescriptors(raw string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO rules (id, descriptors, updated_at) VALUES (1, ?, ?)`,
		raw, time.Now().Unix())
	return err
}

// LoadRuleDescriptors returns the stored rule list, "[]" when none.
func (s *EncryptedSettingsStore) LoadRuleDescriptors() (string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT descriptors FROM rules WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "[]", nil
	}
	return raw, err
}

// --- legacy blocklist ---

// SaveBlocklist replaces the legacy blocked-package set.
func (s *EncryptedSettingsStore) SaveBlocklist(packages []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM blocklist`); err != nil {
		return err
	}
	for i, p := range packages {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO blocklist (package, position) VALUES (?, ?)`, p, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadBlocklist returns the legacy blocked-package set in saved order.
func (s *EncryptedSettingsStore) LoadBlocklist() ([]string, error) {
	rows, err := s.db.Query(`SELECT package FROM blocklist ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

// --- settings ---

// SetMonitoringEnabled persists whether monitoring should resume on boot.
func (s *EncryptedSettingsStore) SetMonitoringEnabled(enabled bool) error {
	return s.setMeta(metaMonitoringEnabled, strconv.FormatBool(enabled))
}

// SetTapConfig persists the tap-to-close gesture parameters.
func (s *EncryptedSettingsStore) SetTapConfig(taps int, timeout time.Duration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaTapsToClose, strconv.Itoa(taps)); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaTapTimeoutMs, strconv.FormatInt(timeout.Milliseconds(), 10)); err != nil {
		return err
	}
	return tx.Commit()
}

// Settings returns runtime settings, with defaults for unset or unreadable values.
func (s *EncryptedSettingsStore) Settings() (domain.Settings, error) {
	settings := domain.Settings{
		TapsToClose: DefaultTapsToClose,
		TapTimeout:  DefaultTapTimeout,
	}

	meta, err := s.allMeta()
	if err != nil {
		return settings, err
	}
	if v, ok := meta[metaMonitoringEnabled]; ok {
		settings.MonitoringEnabled, _ = strconv.ParseBool(v)
	}
	if v, ok := meta[metaTapsToClose]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			settings.TapsToClose = n
		}
	}
	if v, ok := meta[metaTapTimeoutMs]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			settings.TapTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	return settings, nil
}

func (s *EncryptedSettingsStore) setMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

func (s *EncryptedSettingsStore) allMeta() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// --- daemon registration ---

// RegisterDaemon records the running monitor process.
func (s *EncryptedSettingsStore) RegisterDaemon(info domain.DaemonInfo) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daemon_state (id, pid, started_at, app_version)
		VALUES (1, ?, ?, ?)`,
		info.PID, info.StartedAt.Unix(), info.AppVersion,
	)
	return err
}

// GetDaemon returns the registered monitor process, nil if none.
func (s *EncryptedSettingsStore) GetDaemon() (*domain.DaemonInfo, error) {
	var (
		pid       int
		startedAt int64
		version   string
	)
	err := s.db.QueryRow(`SELECT pid, started_at, app_version FROM daemon_state WHERE id = 1`).
		Scan(&pid, &startedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.DaemonInfo{
		PID:        pid,
		StartedAt:  time.Unix(startedAt, 0),
		AppVersion: version,
	}, nil
}

// ClearDaemon removes the monitor registration.
func (s *EncryptedSettingsStore) ClearDaemon() error {
	_, err := s.db.Exec(`DELETE FROM daemon_state`)
	return err
}

// Path returns the database file path.
func (s *EncryptedSettingsStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedSettingsStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*EncryptedSettingsStore)(nil)
