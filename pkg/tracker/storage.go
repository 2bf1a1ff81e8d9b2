package tracker

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// KV is the physical key-value backend under the scoped store. It knows
// nothing about habits, identities, or JSON; engines depend on storage,
// never the reverse.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	// Keys returns every key the backend currently holds. WipeAll needs the
	// full enumeration to purge stale variants from before scoping existed.
	Keys() ([]string, error)
	Close() error
}

// MemoryKV is an in-memory KV backend for tests and throwaway sessions.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Close() error { return nil }

// SQLiteKV is a durable KV backend over a single sqlite table.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV opens (or creates) the backing database at path.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open kv database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLiteKV) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

func (s *SQLiteKV) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteKV) Close() error { return s.db.Close() }

// ScopedStore namespaces all reads and writes by the active identity.
// Operations under identity A never observe keys written under identity B.
type ScopedStore struct {
	kv    KV
	name  string
	scope string
}

// NewScopedStore binds a logical store name to the given identity. A nil
// identity yields the anonymous scope.
func NewScopedStore(kv KV, name string, id *Identity) *ScopedStore {
	return &ScopedStore{kv: kv, name: name, scope: scopeID(id)}
}

func (s *ScopedStore) key() string {
	return s.name + ":" + s.scope
}

// Get returns the stored value, or ok=false when nothing was written.
func (s *ScopedStore) Get() (string, bool, error) {
	return s.kv.Get(s.key())
}

// Set writes the value under the scoped key.
func (s *ScopedStore) Set(value string) error {
	return s.kv.Set(s.key(), value)
}

// Remove deletes the scoped key.
func (s *ScopedStore) Remove() error {
	return s.kv.Delete(s.key())
}

// WipeAll deletes every identity-scoped variant of the given logical names,
// plus bare unscoped keys left by releases that predate scoping. Used on
// explicit data reset and on detected identity change.
func WipeAll(kv KV, names ...string) error {
	keys, err := kv.Keys()
	if err != nil {
		return fmt.Errorf("enumerate keys: %w", err)
	}

	for _, key := range keys {
		for _, name := range names {
			if key == name || strings.HasPrefix(key, name+":") {
				if err := kv.Delete(key); err != nil {
					return fmt.Errorf("delete %s: %w", key, err)
				}
				break
			}
		}
	}
	return nil
}
