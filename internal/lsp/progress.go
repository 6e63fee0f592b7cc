package lsp

type ProgressNotification struct {
	Notification
	Params ProgressParams `json:"params"`
}

type ProgressParams struct {
	Token string        `json:"token"`
	Value ProgressValue `json:"value"`
}

type ProgressValue struct {
	Kind       string `json:"kind"` // "begin" | "report" | "end"
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Percentage *uint  `json:"percentage,omitempty"`
}

func NewProgressBegin(token, title string) ProgressNotification {
	return ProgressNotification{
		Notification: Notification{RPC: RPC_VERSION, Method: "$/progress"},
		Params:       ProgressParams{Token: token, Value: ProgressValue{Kind: "begin", Title: title}},
	}
}

func NewProgressReport(token, message string, percentage uint) ProgressNotification {
	return ProgressNotification{
		Notification: Notification{RPC: RPC_VERSION, Method: "$/progress"},
		Params: ProgressParams{Token: token, Value: ProgressValue{
			Kind: "report", Message: message, Percentage: &percentage,
		}},
	}
}

func NewProgressEnd(token string) ProgressNotification {
	return ProgressNotification{
		Notification: Notification{RPC: RPC_VERSION, Method: "$/progress"},
		Params:       ProgressParams{Token: token, Value: ProgressValue{Kind: "end"}},
	}
}
