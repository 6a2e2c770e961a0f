package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
entry = "src/main.cy"

[run]
trace = true
disassemble = true

[cache]
enabled = false
path = "/tmp/elsewhere.db"

[log]
verbosity = 4
file = "cathon.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if got, want := m.EntryPath(), filepath.Join(m.Dir, "src", "main.cy"); got != want {
		t.Errorf("EntryPath() = %q, want %q", got, want)
	}
	if !m.Run.Trace || !m.Run.Disassemble {
		t.Errorf("run = %+v, want trace and disassemble", m.Run)
	}
	if m.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if m.CachePath() != "/tmp/elsewhere.db" {
		t.Errorf("CachePath() = %q, want the absolute path unchanged", m.CachePath())
	}
	if m.Log.Verbosity != 4 {
		t.Errorf("log verbosity = %d, want 4", m.Log.Verbosity)
	}
	if got, want := m.LogFile(), filepath.Join(m.Dir, "cathon.log"); got != want {
		t.Errorf("LogFile() = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !m.Cache.Enabled {
		t.Error("cache should default to enabled when a manifest exists")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, ".cathon", "cache.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if m.EntryPath() != "" {
		t.Errorf("EntryPath() = %q, want empty", m.EntryPath())
	}
	if m.LogFile() != "" {
		t.Errorf("LogFile() = %q, want empty", m.LogFile())
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Cache.Enabled {
		t.Error("cache should be disabled without a manifest")
	}
	if m.Dir != "" {
		t.Errorf("Dir = %q, want empty", m.Dir)
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing cathon.toml")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []string{
		"[project\nname = 1",
		"[project]\nname = 1\n",
		"[log]\nverbosity = -1\n",
	}
	for _, content := range tests {
		dir := t.TempDir()
		writeManifest(t, dir, content)
		if _, err := Load(dir); err == nil {
			t.Errorf("Load(%q) succeeded, want error", content)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"found\"\n")

	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil, want manifest")
	}
	if m.Project.Name != "found" {
		t.Errorf("project name = %q, want found", m.Project.Name)
	}

	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad returned %+v, want nil", m)
	}
}
