package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skarsol/rscd/internal/config"
	"github.com/skarsol/rscd/internal/lsp"
)

func mockState(t *testing.T, files map[string]string) (*State, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	state := NewState(config.Default())
	state.WorkspaceFolders = []lsp.WorkspaceFolder{
		{URI: pathToURI(dir), Name: "workspace"},
	}
	return &state, dir
}

func TestHandleMessage(t *testing.T) {
	var testCases = []struct {
		method   string
		contents []byte
	}{
		{
			method:   "initialize",
			contents: []byte(`{"id": 1, "params": {"clientInfo": {"name": "TestClient", "version": "1.0"}, "workspaceFolders": [{"uri": "file:///workspace", "name": "workspace"}]}}`),
		},
		{
			method:   "shutdown",
			contents: []byte(`{"id": 1}`),
		},
	}

	for _, tt := range testCases {
		t.Run(tt.method, func(t *testing.T) {
			var buf bytes.Buffer
			state, _ := mockState(t, nil)

			server := NewServer("rscd", "test", *state, &buf)
			server.HandleMessage(tt.method, tt.contents)
			server.Stop()

			switch tt.method {
			case "initialize":
				expectedIn := []string{`"jsonrpc":"2.0"`, `"renameProvider"`, `"prepareProvider":true`}
				response := buf.String()
				for _, exp := range expectedIn {
					if !strings.Contains(response, exp) {
						t.Errorf("'%s' failed. expected '%s' in '%s'", tt.method, exp, response)
					}
				}

			case "shutdown":
				expectedIn := []string{`"jsonrpc"`, `"result":null`}
				response := buf.String()
				for _, exp := range expectedIn {
					if !strings.Contains(response, exp) {
						t.Errorf("'%s' failed. expected '%s' in '%s'", tt.method, exp, response)
					}
				}
			}
		})
	}
}

func TestHandleRenameOverWire(t *testing.T) {
	files := map[string]string{
		"M.rsc": "module M\nint f(int a) {\n  return a;\n}\n",
	}
	state, dir := mockState(t, files)

	var buf bytes.Buffer
	server := NewServer("rscd", "test", *state, &buf)

	uri := pathToURI(filepath.Join(dir, "M.rsc"))
	// cursor on the body use of a (0-based line 2, character 9)
	params := fmt.Sprintf(
		`{"id": 7, "params": {"textDocument": {"uri": %q}, "position": {"line": 2, "character": 9}, "newName": "x"}}`,
		uri,
	)
	server.HandleMessage("textDocument/rename", []byte(params))
	server.Stop()

	response := buf.String()
	if !strings.Contains(response, `"documentChanges"`) {
		t.Fatalf("expected a workspace edit, got %s", response)
	}
	if !strings.Contains(response, `"newText":"x"`) {
		t.Errorf("expected replacement text in %s", response)
	}
	if strings.Count(response, `"newText":"x"`) != 2 {
		t.Errorf("expected two text edits in %s", response)
	}
}

func TestHandleRenameIllegalOverWire(t *testing.T) {
	files := map[string]string{
		"M.rsc": "module M\nint a = 1;\nint b = 2;\n",
	}
	state, dir := mockState(t, files)

	var buf bytes.Buffer
	server := NewServer("rscd", "test", *state, &buf)

	uri := pathToURI(filepath.Join(dir, "M.rsc"))
	// cursor on the declaration of a (0-based line 1, character 4)
	params := fmt.Sprintf(
		`{"id": 8, "params": {"textDocument": {"uri": %q}, "position": {"line": 1, "character": 4}, "newName": "b"}}`,
		uri,
	)
	server.HandleMessage("textDocument/rename", []byte(params))
	server.Stop()

	response := buf.String()
	if !strings.Contains(response, `"error"`) {
		t.Fatalf("expected an error response, got %s", response)
	}
	if !strings.Contains(response, "double declaration") {
		t.Errorf("expected the double-declaration reason in %s", response)
	}
}

func TestPrepareRenameOverWire(t *testing.T) {
	files := map[string]string{
		"M.rsc": "module M\nint abc = 1;\n",
	}
	state, dir := mockState(t, files)
	uri := pathToURI(filepath.Join(dir, "M.rsc"))

	var request lsp.PrepareRenameRequest
	params := fmt.Sprintf(
		`{"id": 9, "params": {"textDocument": {"uri": %q}, "position": {"line": 1, "character": 5}}}`,
		uri,
	)
	if err := json.Unmarshal([]byte(params), &request); err != nil {
		t.Fatal(err)
	}

	response := handlePrepareRename(&request, state)
	if response == nil || response.Result == nil {
		t.Fatal("expected a prepare-rename result")
	}
	if response.Result.Placeholder != "abc" {
		t.Errorf("expected placeholder 'abc', got %q", response.Result.Placeholder)
	}
	if response.Result.Range.Start.Character != 4 {
		t.Errorf("expected range starting at character 4, got %d", response.Result.Range.Start.Character)
	}
}

func TestByteOffset(t *testing.T) {
	text := "ab\ncdéf\ng"
	cases := []struct {
		line, char uint
		want       int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 3},
		{1, 2, 5},       // before the accented rune
		{1, 3, 7},       // after it, two bytes later
		{2, 0, 9},
		{9, 0, len(text)},
	}
	for _, tt := range cases {
		got := byteOffset(text, lsp.Position{Line: tt.line, Character: tt.char})
		if got != tt.want {
			t.Errorf("byteOffset(%d,%d) = %d, expected %d", tt.line, tt.char, got, tt.want)
		}
	}
}

func TestStaleDidChangeDropped(t *testing.T) {
	state, _ := mockState(t, nil)
	if !state.SetDocument("file:///x.rsc", "v5", 5) {
		t.Fatal("first set must succeed")
	}
	if state.SetDocument("file:///x.rsc", "v3", 3) {
		t.Error("stale version must be dropped")
	}
	if state.Documents["file:///x.rsc"].Text != "v5" {
		t.Error("stale content overwrote newer text")
	}
}
