package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg.DebounceTime() != 400*time.Millisecond {
		t.Errorf("expected default debounce, got %v", cfg.DebounceTime())
	}
}

func TestLoadReadsFoldersAndIgnores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rscd.yaml")
	content := `debounceMillis: 150
default:
  sourceRoots: ["src"]
  ignore: ["generated/"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DebounceTime() != 150*time.Millisecond {
		t.Errorf("expected 150ms debounce, got %v", cfg.DebounceTime())
	}

	pc := cfg.PathConfig()
	fc := pc("/ws")
	if len(fc.SourceRoots) != 1 || fc.SourceRoots[0] != filepath.Join("/ws", "src") {
		t.Errorf("relative source root must resolve against the folder, got %v", fc.SourceRoots)
	}
	if fc.Ignore == nil || !fc.Ignore.MatchesPath("generated/D.rsc") {
		t.Errorf("ignore patterns must compile")
	}
	if fc.Ignore.MatchesPath("src/M.rsc") {
		t.Errorf("unignored paths must pass")
	}
}
