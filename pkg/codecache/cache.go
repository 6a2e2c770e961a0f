// Package codecache stores compiled code objects in a SQLite database so
// unchanged sources skip the lex, parse and compile phases.
package codecache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/chazu/cathon/pkg/bytecode"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("codecache: entry not found")

var log = commonlog.GetLogger("cathon.codecache")

// Store is a key/blob cache of encoded code objects.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Key derives the cache key for source compiled in the given mode. The
// wire format version is part of the key, so entries written by an older
// encoder are never looked up.
func Key(mode int, source string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(bytecode.WireVersion)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(mode)))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS code_cache (
		key TEXT PRIMARY KEY,
		mode INTEGER NOT NULL,
		format INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// busyTimeout is how long, in milliseconds, a connection waits on a
// database locked by another process.
const busyTimeout = 5000

// dsn adds the pragmas every pooled connection runs on open.
func dsn(path string) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeout)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get loads the code object stored under key. Entries written with
// another wire format are reported as ErrNotFound.
func (s *Store) Get(key string) (*bytecode.CodeObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	var format int
	err := s.db.QueryRow("SELECT data, format FROM code_cache WHERE key = ?", key).Scan(&data, &format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	if format != bytecode.WireVersion {
		return nil, ErrNotFound
	}

	code, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cached code: %w", err)
	}
	return code, nil
}

// Put stores code under key, replacing any previous entry.
func (s *Store) Put(key string, mode int, code *bytecode.CodeObject) error {
	data, err := bytecode.Marshal(code)
	if err != nil {
		return fmt.Errorf("encoding code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO code_cache (key, mode, format, data, created_at) VALUES (?, ?, ?, ?, ?)",
		key, mode, bytecode.WireVersion, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM code_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Purge deletes every entry and returns how many were removed.
func (s *Store) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM code_cache")
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	log.Infof("purged %d entries from %s", n, s.path)
	return int(n), nil
}
