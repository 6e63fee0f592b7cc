package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/skarsol/rscd/internal/lsp"
)

type queuedMessage struct {
	method   string
	contents []byte
}

type Server struct {
	name         string
	version      string
	state        State
	writer       io.Writer
	messageQueue chan queuedMessage
	wg           sync.WaitGroup

	mu         sync.Mutex
	summaries  map[string]*VersionedCell[*Summary]
	debouncers map[string]*Debouncer
}

func NewServer(name, version string, state State, writer io.Writer) *Server {
	s := &Server{
		name:         name,
		version:      version,
		state:        state,
		writer:       writer,
		messageQueue: make(chan queuedMessage),
		summaries:    make(map[string]*VersionedCell[*Summary]),
		debouncers:   make(map[string]*Debouncer),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Server) run() {
	defer s.wg.Done()
	for msg := range s.messageQueue {
		s.dispatchMessage(msg.method, msg.contents)
	}
}

// HandleMessage enqueues one decoded message. Per-file ordering follows
// from the single queue consumer.
func (s *Server) HandleMessage(method string, contents []byte) {
	s.messageQueue <- queuedMessage{method: method, contents: contents}
}

func (s *Server) Stop() {
	close(s.messageQueue)
	s.wg.Wait()
}

func (s *Server) dispatchMessage(method string, contents []byte) {
	slog.Info("Received message", "method", method)

	switch method {
	case "initialize":
		var request lsp.InitializeRequest
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}

		if request.Params.ClientInfo != nil {
			slog.Info("Connected to client",
				"name", request.Params.ClientInfo.Name,
				"version", request.Params.ClientInfo.Version,
			)
		}

		s.state.WorkspaceFolders = request.Params.WorkspaceFolders
		slog.Info("Workspace folders set", "workspaceFolders", s.state.WorkspaceFolders)

		capabilities := lsp.ServerCapabilities{
			TextDocumentSync: 1,
			RenameProvider: lsp.RenameOptions{
				PrepareProvider: true,
			},
		}
		info := lsp.ServerInfo{
			Name:    s.name,
			Version: s.version,
		}

		msg := lsp.NewInitializeResponse(request.ID, &capabilities, &info)
		s.writeResponse(msg)

	case "shutdown":
		var request lsp.ShutdownRequest
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}

		slog.Info("Received shutdown request")
		s.state.ShutdownRequested = true

		response := lsp.ShutdownResponse{
			Response: lsp.Response{
				RPC: lsp.RPC_VERSION,
				ID:  &request.ID,
			},
			Result: nil,
		}
		s.writeResponse(response)

	case "exit":
		slog.Info("Exiting")
		if s.state.ShutdownRequested {
			os.Exit(0)
		} else {
			slog.Warn("Exiting without preceding shutdown request")
			os.Exit(1)
		}

	case "textDocument/didOpen":
		var request lsp.DidOpenTextDocumentNotification
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}

		uri := request.Params.TextDocument.URI
		slog.Info("Opened document", "URI", uri)
		doc := request.Params.TextDocument
		s.state.SetDocument(uri, doc.Text, doc.Version)
		s.scheduleDiagnostics(uri, doc.Version)

	case "textDocument/didChange":
		var request lsp.TextDocumentDidChangeNotification
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}

		uri := request.Params.TextDocument.URI
		version := request.Params.TextDocument.Version
		for _, change := range request.Params.ContentChanges {
			if !s.state.SetDocument(uri, change.Text, version) {
				slog.Debug("Dropped stale change", "URI", uri, "version", version)
				return
			}
		}
		s.scheduleDiagnostics(uri, version)

	case "textDocument/didClose":
		var request lsp.DidCloseTextDocumentNotification
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}
		s.state.CloseDocument(request.Params.TextDocument.URI)

	case "textDocument/prepareRename":
		var request lsp.PrepareRenameRequest
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}
		response := handlePrepareRename(&request, &s.state)
		if response != nil {
			s.writeResponse(response)
		}

	case "textDocument/rename":
		var request lsp.RenameRequest
		if err := json.Unmarshal(contents, &request); err != nil {
			slog.Error("Could not parse request", "method", method)
		}
		response := s.handleRename(&request)
		if response != nil {
			s.writeResponse(response)
		}
	}
}

func (s *Server) writeResponse(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := lsp.EncodeMessage(msg)
	s.writer.Write([]byte(reply))
}
