// Package rename implements the rename-symbol engine: cursor
// classification, overload and reachability resolution, legality checking
// and edit planning, driven as one pipeline per request.
package rename

import (
	"context"
	"log/slog"

	"github.com/skarsol/rscd/internal/index"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

// Progress receives one call per pipeline step.
type Progress func(label string)

// Engine holds the collaborators a rename needs; it is stateless across
// requests, every call builds its own workspace info.
type Engine struct {
	Oracle     oracle.Oracle
	Read       func(file string) (string, error)
	PathConfig index.PathConfig
}

// Result is the full outcome of a legal rename.
type Result struct {
	Edits       []DocumentEdit
	Annotations map[string]ChangeAnnotation
}

// Rename computes the workspace edits for renaming the symbol at the given
// byte offset to newName. On any error the edit list is empty and no file
// rename is emitted.
func (e *Engine) Rename(ctx context.Context, cursorFile string, offset int, folders []string, newName string, progress Progress) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	step := func(label string) error {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		progress(label)
		return nil
	}

	if err := step("loading cursor file"); err != nil {
		return nil, err
	}
	w := index.New(folders, cursorFile, e.PathConfig, e.Oracle, e.Read)
	if err := w.Preload(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, failf("loading %s: %v", cursorFile, err)
	}
	if errs := w.Model.ErrorsIn(cursorFile); len(errs) > 0 {
		return nil, failf("cannot rename: %s has errors: %s", cursorFile, errs[0].Msg)
	}

	if err := step("classifying cursor"); err != nil {
		return nil, err
	}
	tree, err := w.Tree(cursorFile)
	if err != nil {
		return nil, failf("parsing %s: %v", cursorFile, err)
	}
	at := loc.Location{File: cursorFile, Offset: offset}
	cursor, err := classify(w, tree, at)
	if err != nil {
		return nil, err
	}
	slog.Debug("classified cursor", "kind", cursor.Kind.String(), "name", cursor.Name)

	// renaming to the current name can never change resolution
	if syntax.Unescape(newName) == cursor.Name {
		return &Result{Annotations: map[string]ChangeAnnotation{}}, nil
	}

	res, err := resolve(ctx, w, cursor, newName)
	if err != nil {
		return nil, err
	}

	if err := step("loading workspace"); err != nil {
		return nil, err
	}
	if !res.FunctionLocal {
		if err := w.FullLoad(ctx, cursor.Name, syntax.Unescape(newName)); err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, failf("loading workspace: %v", err)
		}
	}

	if err := step("resolving definitions"); err != nil {
		return nil, err
	}
	if !res.FunctionLocal {
		res, err = resolve(ctx, w, cursor, newName)
		if err != nil {
			return nil, err
		}
	}
	if err := checkAffectedFiles(w, res); err != nil {
		return nil, err
	}

	if err := step("checking legality"); err != nil {
		return nil, err
	}
	reasons, err := checkLegality(ctx, w, cursor, res, newName)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, &IllegalRenameError{Reasons: reasons}
	}

	if err := step("computing edits"); err != nil {
		return nil, err
	}
	edits, annotations, err := planEdits(ctx, w, cursor, res, newName)
	if err != nil {
		return nil, err
	}

	slog.Info("rename planned",
		"name", cursor.Name, "newName", newName,
		"defines", len(res.Defs), "uses", len(res.Uses), "edits", len(edits))
	return &Result{Edits: edits, Annotations: annotations}, nil
}

// checkAffectedFiles refuses to touch files the checker flagged. Files that
// were screened out never reach here; they cannot be affected.
func checkAffectedFiles(w *index.WorkspaceInfo, res *Resolution) error {
	files := map[string]bool{}
	for _, d := range res.Defs {
		files[d.DefinedAt.File] = true
	}
	for _, u := range res.Uses {
		files[u.File] = true
	}
	for file := range files {
		if errs := w.Model.ErrorsIn(file); len(errs) > 0 {
			return failf("cannot rename: %s has errors: %s", file, errs[0].Msg)
		}
	}
	return nil
}
