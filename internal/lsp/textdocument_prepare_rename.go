package lsp

type PrepareRenameRequest struct {
	Request
	Params PrepareRenameParams `json:"params"`
}

type PrepareRenameParams struct {
	TextDocumentPositionParams
}

type PrepareRenameResponse struct {
	Response
	Result *PrepareRenameResult `json:"result"`
}

type PrepareRenameResult struct {
	Range       Range  `json:"range"`
	Placeholder string `json:"placeholder"`
}
