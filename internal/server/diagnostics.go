package server

import (
	"context"

	"github.com/skarsol/rscd/internal/check"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/lsp"
)

// Summary is the per-file analysis result the server caches in versioned
// cells. NullSummary is what calculateSummary returns when the file cannot
// be checked; it is never published. A request superseded within the
// debounce window runs no calculation and produces no summary at all.
type Summary struct {
	Diagnostics []lsp.Diagnostic
}

var NullSummary = &Summary{}

// calculateSummary checks one file and translates the checker messages.
func (s *Server) calculateSummary(uri string) *Summary {
	path, err := uriToPath(uri)
	if err != nil {
		return NullSummary
	}
	checker := check.New(s.state.ReadFile)
	checker.Locate = s.locateModule
	model, err := checker.ModelFor(context.Background(), []string{path})
	if err != nil {
		return NullSummary
	}
	text, _ := s.state.ReadFile(path)
	mapper := loc.NewColumnMapper(text)

	summary := &Summary{Diagnostics: []lsp.Diagnostic{}}
	for _, ce := range model.ErrorsIn(path) {
		rng := toLspRange(mapper.UTF16Range(ce.At.Rng))
		summary.Diagnostics = append(summary.Diagnostics, lsp.NewCheckerDiagnostic(rng, ce.Msg))
	}
	return summary
}

// scheduleDiagnostics debounces the summary calculation for one document
// version and publishes the result if it still wins the version race.
func (s *Server) scheduleDiagnostics(uri string, version int) {
	s.mu.Lock()
	deb, ok := s.debouncers[uri]
	if !ok {
		deb = &Debouncer{}
		s.debouncers[uri] = deb
	}
	cell, ok := s.summaries[uri]
	if !ok {
		cell = &VersionedCell[*Summary]{}
		s.summaries[uri] = cell
	}
	s.mu.Unlock()

	deb.Schedule(version, s.state.Config.DebounceTime(), func() {
		summary := s.calculateSummary(uri)
		if cell.Update(version, summary) && summary != NullSummary {
			s.pushDiagnostics(uri, version, summary.Diagnostics)
		}
	})
}

func (s *Server) pushDiagnostics(uri string, version int, diagnostics []lsp.Diagnostic) {
	s.writeResponse(lsp.NewDiagnosticNotification(uri, &version, diagnostics))
}

func toLspRange(r loc.Range) lsp.Range {
	return lsp.NewRange(r.Start.Line-1, r.Start.Col-1, r.End.Line-1, r.End.Col-1)
}
