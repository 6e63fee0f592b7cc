// Package index holds the per-rename workspace information store. It is
// populated lazily in two phases: a preload of just the cursor file, and a
// full load of every workspace file whose content can mention the cursor
// name. Everything in it is discarded when the rename completes.
package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

// FolderConfig is the path configuration of one workspace folder.
type FolderConfig struct {
	SourceRoots []string
	Ignore      *ignore.GitIgnore
}

// PathConfig yields the configuration for a workspace folder.
type PathConfig func(folder string) FolderConfig

type LoadState int

const (
	Empty LoadState = iota
	Preloaded
	Full
)

// WorkspaceInfo is the lazily-populated union of type-checker facts for one
// rename request.
type WorkspaceInfo struct {
	Folders    []string
	CursorFile string

	pathConfig PathConfig
	oracle     oracle.Oracle
	read       func(file string) (string, error)

	State LoadState
	Model *oracle.Model

	// SourceFiles is every workspace-reachable source file, loaded or not.
	// Skipped records the "known, unloaded" ones that provably cannot
	// mention the cursor name.
	SourceFiles map[string]bool
	Loaded      map[string]bool
	Skipped     map[string]bool

	trees        map[string]*syntax.File
	moduleByFile map[string]string
}

func New(folders []string, cursorFile string, pc PathConfig, orc oracle.Oracle, read func(string) (string, error)) *WorkspaceInfo {
	return &WorkspaceInfo{
		Folders:     folders,
		CursorFile:  cursorFile,
		pathConfig:  pc,
		oracle:      orc,
		read:        read,
		SourceFiles: map[string]bool{},
		Loaded:      map[string]bool{},
		Skipped:     map[string]bool{},
		trees:       map[string]*syntax.File{},
	}
}

// Preload pulls in just enough state to classify the cursor: the model of
// the cursor file. Its tree is parsed on demand by Tree.
func (w *WorkspaceInfo) Preload(ctx context.Context) error {
	if w.State != Empty {
		return nil
	}
	model, err := w.oracle.ModelFor(ctx, []string{w.CursorFile})
	if err != nil {
		return err
	}
	w.Model = model
	w.SourceFiles[w.CursorFile] = true
	w.Loaded[w.CursorFile] = true
	w.State = Preloaded
	w.indexModules()
	return nil
}

// FullLoad enumerates every source file under the workspace folders and
// loads the ones whose lexical content mentions any of the given names or
// their escaped forms. Files that provably cannot be affected are
// registered but stay unloaded. A second call within the same rename is a
// no-op.
func (w *WorkspaceInfo) FullLoad(ctx context.Context, names ...string) error {
	if w.State == Full {
		return nil
	}
	all, err := w.enumerate()
	if err != nil {
		return err
	}

	mentions := func(content string) bool {
		for _, name := range names {
			if strings.Contains(content, name) || strings.Contains(content, "\\"+name) {
				return true
			}
		}
		return false
	}

	load := []string{w.CursorFile}
	for _, file := range all {
		w.SourceFiles[file] = true
		if file == w.CursorFile {
			continue
		}
		content, err := w.read(file)
		if err != nil {
			w.Skipped[file] = true
			continue
		}
		if mentions(content) {
			load = append(load, file)
		} else {
			w.Skipped[file] = true
		}
	}

	model, err := w.oracle.ModelFor(ctx, load)
	if err != nil {
		return err
	}
	w.Model = model
	for _, file := range load {
		w.Loaded[file] = true
	}
	w.State = Full
	w.indexModules()
	return nil
}

func (w *WorkspaceInfo) indexModules() {
	w.moduleByFile = map[string]string{}
	for name, headerLoc := range w.Model.Modules {
		w.moduleByFile[headerLoc.File] = name
	}
}

// enumerate walks the source roots of every workspace folder for .rsc
// files, honouring the folder's ignore patterns.
func (w *WorkspaceInfo) enumerate() ([]string, error) {
	var files []string
	for _, folder := range w.Folders {
		cfg := w.pathConfig(folder)
		roots := cfg.SourceRoots
		if len(roots) == 0 {
			roots = []string{folder}
		}
		for _, root := range roots {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				name := d.Name()
				if d.IsDir() {
					if path != root && strings.HasPrefix(name, ".") {
						return fs.SkipDir
					}
					return nil
				}
				if filepath.Ext(name) != ".rsc" {
					return nil
				}
				if cfg.Ignore != nil {
					if rel, err := filepath.Rel(root, path); err == nil && cfg.Ignore.MatchesPath(rel) {
						return nil
					}
				}
				files = append(files, path)
				return nil
			})
			if err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// SourceRootFor returns the longest configured source root that is an
// ancestor of file.
func (w *WorkspaceInfo) SourceRootFor(file string) (string, bool) {
	best := ""
	for _, folder := range w.Folders {
		cfg := w.pathConfig(folder)
		roots := cfg.SourceRoots
		if len(roots) == 0 {
			roots = []string{folder}
		}
		for _, root := range roots {
			if loc.PathPrefix(root, file) && len(root) > len(best) {
				best = root
			}
		}
	}
	return best, best != ""
}

// GetDefs resolves a location: a use maps through useDef, anything else is
// its own definition.
func (w *WorkspaceInfo) GetDefs(l loc.Location) []loc.Location {
	if defs, ok := w.Model.UseDef[l]; ok {
		return defs
	}
	return []loc.Location{l}
}

// Tree returns the parsed module for a loaded file, caching per rename.
func (w *WorkspaceInfo) Tree(file string) (*syntax.File, error) {
	if t, ok := w.trees[file]; ok {
		return t, nil
	}
	src, err := w.read(file)
	if err != nil {
		return nil, err
	}
	t, err := syntax.Parse(src, file)
	if err != nil {
		return nil, err
	}
	w.trees[file] = t
	return t, nil
}

// ReachableDefs returns every define visible from any seed location,
// following the lexical scope chain and one import hop. The scope graph is
// a DAG rooted at file locations, so this terminates.
func (w *WorkspaceInfo) ReachableDefs(seeds []loc.Location) []oracle.Define {
	var out []oracle.Define
	seen := map[loc.Location]bool{}
	for _, d := range w.Model.Defines {
		if seen[d.DefinedAt] {
			continue
		}
		for _, seed := range seeds {
			if w.visibleFrom(seed, d) {
				out = append(out, d)
				seen[d.DefinedAt] = true
				break
			}
		}
	}
	return out
}

func (w *WorkspaceInfo) visibleFrom(at loc.Location, d oracle.Define) bool {
	if at.In(d.Scope) {
		return true
	}
	// module-level defines are visible from any importing file
	fileLoc, ok := w.Model.Files[d.DefinedAt.File]
	if !ok || d.Scope != fileLoc {
		return false
	}
	module, ok := w.moduleByFile[d.DefinedAt.File]
	if !ok {
		return false
	}
	for _, imported := range w.Model.Imports[at.File] {
		if imported == module {
			return true
		}
	}
	return false
}
