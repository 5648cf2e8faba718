// Package settings persists the user settings the server depends on in a
// SQLite database. Values are cached in memory so reads never fail.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	keyPort             = "server_port"
	keyDestination      = "destination"
	keyAutoStart        = "auto_start_server"
	keyDefaultPresetFmt = "default_%s_preset"
)

// Defaults seed keys that are not in the database yet.
type Defaults struct {
	Port        uint16
	Destination string
	AutoStart   bool
}

// Change is one row of the settings history.
type Change struct {
	ID        int64
	Key       string
	Value     string
	Timestamp time.Time
}

type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	values map[string]string
}

func Open(dbPath string, defaults Defaults) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection so ":memory:" databases are shared
	db.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    timestamp TEXT NOT NULL
);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, values: make(map[string]string)}

	seed := map[string]string{
		keyPort:        strconv.FormatUint(uint64(defaults.Port), 10),
		keyDestination: defaults.Destination,
		keyAutoStart:   strconv.FormatBool(defaults.AutoStart),
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, v := range seed {
		if _, err := db.Exec(`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`, k, v, now); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed %s: %w", k, err)
		}
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		s.values[k] = v
	}
	return rows.Err()
}

func (s *Store) get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO settings_history (key, value, timestamp) VALUES (?, ?, ?)`,
		key, value, now,
	); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.values[key] = value
	return nil
}

// Port returns the configured server port, 0 when unset or invalid.
func (s *Store) Port() uint16 {
	p, err := strconv.ParseUint(s.get(keyPort), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(p)
}

func (s *Store) SetPort(port uint16) error {
	return s.set(keyPort, strconv.FormatUint(uint64(port), 10))
}

// Destination is the directory holding the Data/ preset files.
func (s *Store) Destination() string {
	return s.get(keyDestination)
}

func (s *Store) SetDestination(dir string) error {
	return s.set(keyDestination, dir)
}

func (s *Store) AutoStart() bool {
	v, _ := strconv.ParseBool(s.get(keyAutoStart))
	return v
}

func (s *Store) SetAutoStart(v bool) error {
	return s.set(keyAutoStart, strconv.FormatBool(v))
}

// DefaultPreset returns the default preset name of a family ("fuel",
// "deviation"), empty when none was chosen.
func (s *Store) DefaultPreset(kind string) string {
	return s.get(fmt.Sprintf(keyDefaultPresetFmt, kind))
}

func (s *Store) SetDefaultPreset(kind, name string) error {
	return s.set(fmt.Sprintf(keyDefaultPresetFmt, kind), name)
}

// History returns the changes recorded for key, oldest first.
func (s *Store) History(key string) ([]Change, error) {
	rows, err := s.db.Query(
		`SELECT id, key, value, timestamp FROM settings_history WHERE key = ? ORDER BY id ASC`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var ts string
		if err := rows.Scan(&c.ID, &c.Key, &c.Value, &ts); err != nil {
			return nil, err
		}
		c.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Keys used by History.
const (
	KeyPort      = keyPort
	KeyAutoStart = keyAutoStart
)
