package lsp

type RenameRequest struct {
	Request
	Params RenameParams `json:"params"`
}

type RenameParams struct {
	TextDocumentPositionParams
	NewName       string  `json:"newName"`
	WorkDoneToken *string `json:"workDoneToken"`
}

type RenameResponse struct {
	Response
	Result *WorkspaceEdit `json:"result"`
}

// WorkspaceEdit uses documentChanges rather than the legacy changes map, so
// file renames and annotated edits can ride along.
type WorkspaceEdit struct {
	DocumentChanges   []DocumentChange            `json:"documentChanges"`
	ChangeAnnotations map[string]ChangeAnnotation `json:"changeAnnotations,omitempty"`
}

// DocumentChange is either a text-document edit or a file operation; which
// one is encoded by Kind being empty or not.
type DocumentChange struct {
	// text document edit
	TextDocument *OptionalVersionedTextDocumentIdentifier `json:"textDocument,omitempty"`
	Edits        []AnnotatedTextEdit                      `json:"edits,omitempty"`

	// file operations
	Kind    string `json:"kind,omitempty"` // "create" | "rename" | "delete"
	URI     string `json:"uri,omitempty"`
	OldURI  string `json:"oldUri,omitempty"`
	NewURI  string `json:"newUri,omitempty"`
}

type AnnotatedTextEdit struct {
	Range        Range  `json:"range"`
	NewText      string `json:"newText"`
	AnnotationID string `json:"annotationId,omitempty"`
}

type ChangeAnnotation struct {
	Label             string `json:"label"`
	Description       string `json:"description,omitempty"`
	NeedsConfirmation bool   `json:"needsConfirmation"`
}

func NewTextDocumentChange(uri string, version *int, edits []AnnotatedTextEdit) DocumentChange {
	return DocumentChange{
		TextDocument: &OptionalVersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		Edits: edits,
	}
}

func NewRenameFileChange(oldURI, newURI string) DocumentChange {
	return DocumentChange{Kind: "rename", OldURI: oldURI, NewURI: newURI}
}

func NewCreateFileChange(uri string) DocumentChange {
	return DocumentChange{Kind: "create", URI: uri}
}

func NewDeleteFileChange(uri string) DocumentChange {
	return DocumentChange{Kind: "delete", URI: uri}
}
