package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/skarsol/rscd/internal/check"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
)

func testWorkspace(t *testing.T, files map[string]string) (string, *WorkspaceInfo) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	read := func(file string) (string, error) {
		data, err := os.ReadFile(file)
		return string(data), err
	}
	checker := check.New(read)
	checker.Locate = func(module string) (string, bool) {
		path := oracle.PathForModule(dir, module)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		return "", false
	}
	pc := func(folder string) FolderConfig {
		return FolderConfig{SourceRoots: []string{folder}}
	}
	w := New([]string{dir}, filepath.Join(dir, "M.rsc"), pc, checker, read)
	return dir, w
}

func TestPreloadLoadsOnlyCursorFile(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc":     "module M\nint a = 1;\n",
		"Other.rsc": "module Other\nint b = 2;\n",
	})

	if err := w.Preload(context.Background()); err != nil {
		t.Fatalf("preload failed: %v", err)
	}
	if w.State != Preloaded {
		t.Errorf("expected Preloaded state")
	}
	if !w.Loaded[filepath.Join(dir, "M.rsc")] {
		t.Errorf("cursor file not loaded")
	}
	if w.Loaded[filepath.Join(dir, "Other.rsc")] {
		t.Errorf("preload must not touch other files")
	}
	if _, ok := w.Model.Modules["M"]; !ok {
		t.Errorf("expected module M in the preloaded model")
	}
}

func TestFullLoadScreensByName(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc":       "module M\nint shared = 1;\n",
		"Uses.rsc":    "module Uses\nimport M;\nint g() = shared;\n",
		"Unrelated.rsc": "module Unrelated\nint zzz = 3;\n",
	})

	if err := w.Preload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.FullLoad(context.Background(), "shared"); err != nil {
		t.Fatalf("full load failed: %v", err)
	}

	if w.State != Full {
		t.Errorf("expected Full state")
	}
	unrelated := filepath.Join(dir, "Unrelated.rsc")
	if w.Loaded[unrelated] {
		t.Errorf("file without the name must stay unloaded")
	}
	if !w.Skipped[unrelated] {
		t.Errorf("unloaded file must still be registered as known")
	}
	if !w.SourceFiles[unrelated] {
		t.Errorf("every workspace file belongs to sourceFiles")
	}
	if !w.Loaded[filepath.Join(dir, "Uses.rsc")] {
		t.Errorf("file mentioning the name must be loaded")
	}

	// a second call is a no-op
	if err := w.FullLoad(context.Background(), "other"); err != nil {
		t.Fatalf("second full load: %v", err)
	}
}

func TestFullLoadFindsEscapedMentions(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc":       "module M\nint \\data = 1;\n",
		"Escaped.rsc": "module Escaped\nimport M;\nint g() = \\data;\n",
	})
	if err := w.Preload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.FullLoad(context.Background(), "data"); err != nil {
		t.Fatal(err)
	}
	if !w.Loaded[filepath.Join(dir, "Escaped.rsc")] {
		t.Errorf("escaped mentions must be loaded")
	}
}

func TestGetDefs(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc": "module M\nint a = 1;\nint g() = a;\n",
	})
	if err := w.Preload(context.Background()); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(dir, "M.rsc")
	var useLoc, defLoc loc.Location
	for u, defs := range w.Model.UseDef {
		if u.File == file && len(defs) == 1 {
			useLoc, defLoc = u, defs[0]
		}
	}
	if useLoc.File == "" {
		t.Fatal("expected a use-def edge")
	}

	got := w.GetDefs(useLoc)
	if len(got) != 1 || got[0] != defLoc {
		t.Errorf("use must resolve through useDef")
	}
	self := w.GetDefs(defLoc)
	if len(self) != 1 || self[0] != defLoc {
		t.Errorf("a non-use location is its own definition")
	}
}

func TestReachableDefs(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc":    "module M\nimport Dep;\nint g() = helper();\n",
		"Dep.rsc":  "module Dep\nint helper() {\n  return 1;\n}\n",
	})
	if err := w.Preload(context.Background()); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(dir, "M.rsc")
	seed := loc.Location{File: file, Offset: 10, Length: 1, Rng: loc.Range{
		Start: loc.Pos{Line: 2, Col: 1}, End: loc.Pos{Line: 2, Col: 2},
	}}

	reachable := w.ReachableDefs([]loc.Location{seed})
	foundHelper := false
	for _, d := range reachable {
		if d.Name == "helper" && d.Role == oracle.RoleFunction {
			foundHelper = true
		}
	}
	if !foundHelper {
		t.Errorf("imported module-level define must be reachable")
	}
}

func TestSourceRootFor(t *testing.T) {
	dir, w := testWorkspace(t, map[string]string{
		"M.rsc": "module M\n",
	})
	root, ok := w.SourceRootFor(filepath.Join(dir, "M.rsc"))
	if !ok || root != dir {
		t.Errorf("expected source root %s, got %s", dir, root)
	}
	if _, ok := w.SourceRootFor("/elsewhere/X.rsc"); ok {
		t.Errorf("files outside every root have no source root")
	}
}
