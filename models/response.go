package models

// ToolEvent records a tool invocation made while answering a chat turn.
type ToolEvent struct {
	Tool    string `json:"tool"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Failed  bool   `json:"failed,omitempty"`
}

type ChatResponse struct {
	Answer     string      `json:"answer"`
	SessionID  string      `json:"sessionID"`
	ToolEvents []ToolEvent `json:"tool_events,omitempty"`
}

type TariffQueryResponse struct {
	Result string `json:"result"`
}

type CountriesResponse struct {
	Countries   []string          `json:"countries"`
	Unavailable map[string]string `json:"unavailable,omitempty"`
}

// RefreshReport describes what a discovery pass changed.
type RefreshReport struct {
	Added       []string          `json:"added"`
	Available   []string          `json:"available"`
	Unavailable map[string]string `json:"unavailable,omitempty"`
	Message     string            `json:"message,omitempty"`
}
