package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/skarsol/rscd/internal/check"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/lsp"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/rename"
	"github.com/skarsol/rscd/internal/syntax"
)

func (s *Server) newEngine() *rename.Engine {
	checker := check.New(s.state.ReadFile)
	checker.Locate = s.locateModule
	return &rename.Engine{
		Oracle:     checker,
		Read:       s.state.ReadFile,
		PathConfig: s.state.Config.PathConfig(),
	}
}

// locateModule resolves a qualified module name to a file by the loader's
// path convention, over every configured source root.
func (s *Server) locateModule(module string) (string, bool) {
	pc := s.state.Config.PathConfig()
	for _, folder := range s.state.FolderPaths() {
		for _, root := range pc(folder).SourceRoots {
			path := oracle.PathForModule(root, module)
			if _, ok := s.state.Documents[pathToURI(path)]; ok {
				return path, true
			}
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

func handlePrepareRename(request *lsp.PrepareRenameRequest, state *State) *lsp.PrepareRenameResponse {
	uri := request.Params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return nil
	}
	text, err := state.ReadFile(path)
	if err != nil {
		return nil
	}
	tree, err := syntax.Parse(text, path)
	if err != nil {
		return nil
	}
	offset := byteOffset(text, request.Params.Position)
	ident := identUnder(tree, offset)
	if ident == nil {
		return &lsp.PrepareRenameResponse{
			Response: lsp.Response{RPC: lsp.RPC_VERSION, ID: &request.ID},
			Result:   nil,
		}
	}

	mapper := loc.NewColumnMapper(text)
	return &lsp.PrepareRenameResponse{
		Response: lsp.Response{RPC: lsp.RPC_VERSION, ID: &request.ID},
		Result: &lsp.PrepareRenameResult{
			Range:       toLspRange(mapper.UTF16Range(ident.Span().Rng)),
			Placeholder: ident.Name,
		},
	}
}

func identUnder(tree *syntax.File, offset int) *syntax.Ident {
	return syntax.IdentAt(tree, offset)
}

func (s *Server) handleRename(request *lsp.RenameRequest) any {
	uri := request.Params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return lsp.NewErrorResponse(request.ID, lsp.CodeInvalidParams, err.Error())
	}
	text, err := s.state.ReadFile(path)
	if err != nil {
		return lsp.NewErrorResponse(request.ID, lsp.CodeInvalidParams, err.Error())
	}
	offset := byteOffset(text, request.Params.Position)

	var progress rename.Progress
	if token := request.Params.WorkDoneToken; token != nil {
		s.writeResponse(lsp.NewProgressBegin(*token, "Renaming"))
		steps := uint(0)
		progress = func(label string) {
			steps++
			pct := steps * 100 / 6
			if pct > 100 {
				pct = 100
			}
			s.writeResponse(lsp.NewProgressReport(*token, label, pct))
		}
		defer s.writeResponse(lsp.NewProgressEnd(*token))
	}

	engine := s.newEngine()
	result, err := engine.Rename(
		context.Background(), path, offset,
		s.state.FolderPaths(), request.Params.NewName, progress,
	)
	if err != nil {
		slog.Info("rename rejected", "err", err)
		return renameError(request.ID, err)
	}

	edit := s.toWorkspaceEdit(result)
	return &lsp.RenameResponse{
		Response: lsp.Response{RPC: lsp.RPC_VERSION, ID: &request.ID},
		Result:   edit,
	}
}

func renameError(id int, err error) lsp.ErrorResponse {
	code := lsp.CodeRequestFailed
	if errors.Is(err, rename.ErrCancelled) {
		code = lsp.CodeRequestCancelled
	}
	var unexpected *rename.UnexpectedFailureError
	if errors.As(err, &unexpected) {
		code = lsp.CodeInternalError
	}
	return lsp.NewErrorResponse(id, code, err.Error())
}

// toWorkspaceEdit translates engine edits to the wire format, mapping
// codepoint columns to UTF-16 per file.
func (s *Server) toWorkspaceEdit(result *rename.Result) *lsp.WorkspaceEdit {
	edit := &lsp.WorkspaceEdit{DocumentChanges: []lsp.DocumentChange{}}
	mappers := map[string]*loc.ColumnMapper{}
	mapperFor := func(file string) *loc.ColumnMapper {
		if m, ok := mappers[file]; ok {
			return m
		}
		text, _ := s.state.ReadFile(file)
		m := loc.NewColumnMapper(text)
		mappers[file] = m
		return m
	}

	for _, de := range result.Edits {
		switch de := de.(type) {
		case rename.Changed:
			uri := pathToURI(de.File)
			mapper := mapperFor(de.File)
			var edits []lsp.AnnotatedTextEdit
			for _, te := range de.Edits {
				edits = append(edits, lsp.AnnotatedTextEdit{
					Range:        toLspRange(mapper.UTF16Range(te.Loc.Rng)),
					NewText:      te.NewText,
					AnnotationID: te.AnnotationID,
				})
			}
			var version *int
			if doc, ok := s.state.Documents[uri]; ok {
				v := doc.Version
				version = &v
			}
			edit.DocumentChanges = append(edit.DocumentChanges, lsp.NewTextDocumentChange(uri, version, edits))

		case rename.Renamed:
			edit.DocumentChanges = append(edit.DocumentChanges,
				lsp.NewRenameFileChange(pathToURI(de.From), pathToURI(de.To)))

		case rename.Created:
			edit.DocumentChanges = append(edit.DocumentChanges, lsp.NewCreateFileChange(pathToURI(de.File)))

		case rename.Removed:
			edit.DocumentChanges = append(edit.DocumentChanges, lsp.NewDeleteFileChange(pathToURI(de.File)))
		}
	}

	if len(result.Annotations) > 0 {
		edit.ChangeAnnotations = map[string]lsp.ChangeAnnotation{}
		for id, a := range result.Annotations {
			edit.ChangeAnnotations[id] = lsp.ChangeAnnotation{
				Label:             a.Label,
				Description:       a.Description,
				NeedsConfirmation: a.NeedsConfirmation,
			}
		}
	}
	return edit
}

// byteOffset converts an LSP position (0-based line, UTF-16 character) to a
// byte offset into the document.
func byteOffset(text string, pos lsp.Position) int {
	offset := 0
	line := uint(0)
	for line < pos.Line {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
		line++
	}
	units := uint(0)
	for i, r := range text[offset:] {
		if units >= pos.Character || r == '\n' {
			return offset + i
		}
		units += uint(len(utf16.Encode([]rune{r})))
	}
	return len(text)
}
