package models

import "time"

const (
	TranscriptRoleUser      = "user"
	TranscriptRoleAssistant = "assistant"
)

// TranscriptSource is a cited search result stored with an assistant answer.
type TranscriptSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// TranscriptEntry is one turn of a user's research-assistant history.
type TranscriptEntry struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	Role              string             `json:"role"`
	Content           string             `json:"content"`
	Route             string             `json:"route,omitempty"`
	SearchQuery       string             `json:"search_query,omitempty"`
	Sources           []TranscriptSource `json:"sources,omitempty"`
	FollowUpQuestions []string           `json:"follow_up_questions,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
