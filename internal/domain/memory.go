package domain

import "time"

// Memory is a persisted cross-session agent memory. The browser only
// displays these; their content is opaque to this service.
type Memory struct {
	ID        MemoryID  `json:"id"`
	MatterID  MatterID  `json:"matter_id,omitempty"`
	SessionID SessionID `json:"session_id,omitempty"`
	Agent     AgentType `json:"agent_type"`
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryQuery filters a memory search. Empty fields match everything.
type MemoryQuery struct {
	Text     string
	MatterID MatterID
}

// CitationCheck is the result of verifying a citation upstream.
type CitationCheck struct {
	Citation string `json:"citation"`
	Found    bool   `json:"found"`
	CaseName string `json:"case_name,omitempty"`
	Court    string `json:"court,omitempty"`
	Year     int    `json:"year,omitempty"`
	URL      string `json:"url,omitempty"`
}
