package server

import (
	"os"

	"github.com/skarsol/rscd/internal/config"
	"github.com/skarsol/rscd/internal/lsp"
)

type Document struct {
	Text    string
	Version int
}

type State struct {
	Documents         map[string]*Document // keyed by URI
	WorkspaceFolders  []lsp.WorkspaceFolder
	Config            config.Config
	ShutdownRequested bool
}

func NewState(cfg config.Config) State {
	return State{
		Documents: make(map[string]*Document),
		Config:    cfg,
	}
}

// SetDocument stores an open document's content, dropping stale versions.
// The client sends monotonic versions per file, so an older version losing
// means the update already happened.
func (s *State) SetDocument(uri, text string, version int) bool {
	if doc, ok := s.Documents[uri]; ok && version < doc.Version {
		return false
	}
	s.Documents[uri] = &Document{Text: text, Version: version}
	return true
}

func (s *State) CloseDocument(uri string) {
	delete(s.Documents, uri)
}

// ReadFile reads through the open-document overlay first, then from disk,
// so the engine sees unsaved edits.
func (s *State) ReadFile(path string) (string, error) {
	if doc, ok := s.Documents[pathToURI(path)]; ok {
		return doc.Text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FolderPaths resolves the workspace folder URIs to filesystem paths.
func (s *State) FolderPaths() []string {
	var out []string
	for _, f := range s.WorkspaceFolders {
		if p, err := uriToPath(f.URI); err == nil {
			out = append(out, p)
		}
	}
	return out
}
