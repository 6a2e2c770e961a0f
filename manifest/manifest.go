// Package manifest handles cathon.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "cathon.toml"

// Manifest represents a cathon.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Run     RunConfig   `toml:"run"`
	Cache   CacheConfig `toml:"cache"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the cathon.toml file (set at load time).
	// It is empty for the defaults returned by Default.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// RunConfig holds defaults for the corresponding command line flags.
type RunConfig struct {
	Trace       bool `toml:"trace"`
	Disassemble bool `toml:"disassemble"`
}

// CacheConfig configures the compiled code cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// DefaultCachePath is the cache location relative to the manifest directory.
var DefaultCachePath = filepath.Join(".cathon", "cache.db")

// Default returns the configuration used when no manifest exists. The
// cache is off because there is no project directory to keep it in.
func Default() *Manifest {
	return &Manifest{
		Cache: CacheConfig{Enabled: false, Path: DefaultCachePath},
	}
}

// Load parses the cathon.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a manifest at an explicit path. Keys missing from the
// file keep their defaults; the cache is enabled unless the file turns
// it off.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	m.Cache.Enabled = true
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.Log.Verbosity < 0 {
		return nil, fmt.Errorf("%s: log verbosity must not be negative", path)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a cathon.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve joins a manifest-relative path onto Dir.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the absolute path of the project entry script, or ""
// when none is configured.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogFile returns the absolute path of the log file, or "" to log to
// standard error.
func (m *Manifest) LogFile() string {
	return m.resolve(m.Log.File)
}
