package queue

// IngestMsg asks the worker to load a document and feed it into the graph.
type IngestMsg struct {
	Message    string `json:"message"`
	DocumentID int64  `json:"document_id"`
	TeamID     int64  `json:"team_id"`
}

// LearnMsg carries text for background fact learning in a scope.
type LearnMsg struct {
	ScopeID int64  `json:"scope_id"`
	UserID  int64  `json:"user_id"`
	Text    string `json:"text"`
}
