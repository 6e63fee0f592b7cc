package rename

import (
	"context"
	"sort"

	"github.com/skarsol/rscd/internal/index"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/syntax"
)

// DocumentEdit is one element of the rename's result: a text change to one
// file, or a file operation.
type DocumentEdit interface {
	documentEdit()
}

type TextEdit struct {
	Loc          loc.Location
	NewText      string
	AnnotationID string // empty for unannotated edits
}

type Changed struct {
	File  string
	Edits []TextEdit
}

type Renamed struct {
	From string
	To   string
}

type Created struct {
	File string
}

type Removed struct {
	File string
}

func (Changed) documentEdit() {}
func (Renamed) documentEdit() {}
func (Created) documentEdit() {}
func (Removed) documentEdit() {}

// ChangeAnnotation labels a set of edits for the client, optionally asking
// for confirmation before they apply.
type ChangeAnnotation struct {
	Label             string
	Description       string
	NeedsConfirmation bool
}

const crossFileAnnotation = "rename.crossFile"

// planEdits converts the resolution into one replacement per identifier
// sub-location, plus the file renames a module rename implies. Edits in
// files other than the cursor file carry the cross-file annotation.
func planEdits(ctx context.Context, w *index.WorkspaceInfo, cursor *Cursor, res *Resolution, newName string) ([]DocumentEdit, map[string]ChangeAnnotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, ErrCancelled
	}

	byFile := map[string][]loc.Location{}
	for _, d := range res.Defs {
		byFile[d.DefinedAt.File] = append(byFile[d.DefinedAt.File], d.DefinedAt)
	}
	for _, u := range res.Uses {
		byFile[u.File] = append(byFile[u.File], u)
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	newText := syntax.Escape(syntax.Unescape(newName))
	annotations := map[string]ChangeAnnotation{}

	var edits []DocumentEdit
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, ErrCancelled
		}
		tree, err := w.Tree(file)
		if err != nil {
			return nil, nil, failf("no syntax tree for %s: %v", file, err)
		}
		subs, missing := syntax.SubLocations(tree, byFile[file])
		if len(missing) > 0 {
			unsupported := &UnsupportedRenameError{}
			for _, m := range missing {
				unsupported.Issues = append(unsupported.Issues, Issue{At: m, Msg: "no identifier at this location"})
			}
			return nil, nil, unsupported
		}

		annotationID := ""
		if file != cursor.Loc.File {
			annotationID = crossFileAnnotation
			annotations[crossFileAnnotation] = ChangeAnnotation{
				Label:             "Rename in other files",
				Description:       "Occurrences outside the file under the cursor",
				NeedsConfirmation: true,
			}
		}

		seen := map[loc.Location]bool{}
		var textEdits []TextEdit
		for _, sub := range subs {
			if seen[sub] {
				continue
			}
			seen[sub] = true
			textEdits = append(textEdits, TextEdit{Loc: sub, NewText: newText, AnnotationID: annotationID})
		}
		sort.Slice(textEdits, func(i, j int) bool { return textEdits[i].Loc.Offset < textEdits[j].Loc.Offset })
		edits = append(edits, Changed{File: file, Edits: textEdits})
	}

	for _, fr := range res.FileRenames {
		edits = append(edits, Renamed{From: fr[0], To: fr[1]})
	}
	return edits, annotations, nil
}
