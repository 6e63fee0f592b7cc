package rename

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skarsol/rscd/internal/loc"
)

// ErrCancelled reports a cancelled rename. It is recoverable and never
// dressed up as an unexpected failure.
var ErrCancelled = errors.New("rename cancelled")

type ReasonKind int

const (
	InvalidName ReasonKind = iota
	DefinitionsOutsideWorkspace
	DoubleDeclaration
	CaptureChange
)

func (k ReasonKind) String() string {
	switch k {
	case InvalidName:
		return "the new name is not a valid identifier"
	case DefinitionsOutsideWorkspace:
		return "it would change definitions outside the workspace"
	case DoubleDeclaration:
		return "it would introduce a double declaration"
	case CaptureChange:
		return "it would change what a name refers to"
	}
	return "unknown"
}

// Reason is one ground for rejecting an analysed rename, with its minimal
// witness locations.
type Reason struct {
	Kind      ReasonKind
	Witnesses []loc.Location
}

// IllegalRenameError means the rename was fully analysed and rejected for
// semantic reasons. Reasons are aggregated across all files before this is
// raised, so the user sees every blocker at once.
type IllegalRenameError struct {
	Reasons []Reason
}

func (e *IllegalRenameError) Error() string {
	seen := map[ReasonKind]bool{}
	var parts []string
	for _, r := range e.Reasons {
		if !seen[r.Kind] {
			seen[r.Kind] = true
			parts = append(parts, r.Kind.String())
		}
	}
	return "rename is not allowed: " + strings.Join(parts, "; ")
}

type Issue struct {
	At  loc.Location
	Msg string
}

// UnsupportedRenameError means the engine cannot reason about this form.
type UnsupportedRenameError struct {
	Issues []Issue
}

func (e *UnsupportedRenameError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("unsupported rename: %s (%s)", e.Issues[0].Msg, e.Issues[0].At)
	}
	return fmt.Sprintf("unsupported rename (%d issues)", len(e.Issues))
}

func unsupportedf(at loc.Location, format string, args ...any) *UnsupportedRenameError {
	return &UnsupportedRenameError{Issues: []Issue{{At: at, Msg: fmt.Sprintf(format, args...)}}}
}

// UnexpectedFailureError reports a broken precondition, such as a missing
// type model for a touched file.
type UnexpectedFailureError struct {
	Message string
}

func (e *UnexpectedFailureError) Error() string { return e.Message }

func failf(format string, args ...any) *UnexpectedFailureError {
	return &UnexpectedFailureError{Message: fmt.Sprintf(format, args...)}
}
