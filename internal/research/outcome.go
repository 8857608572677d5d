package research

import (
	"encoding/json"
	"time"
)

// Outcome is the closed set of results a pipeline stage can produce:
// SearchResults, SearchError, Analysis or AnalysisError.
type Outcome interface {
	outcome()
}

// Result is one extracted search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// SearchResults is a successful search stage.
type SearchResults struct {
	Query      string    `json:"query"`
	Approach   string    `json:"approach"`
	Results    []Result  `json:"results"`
	TotalFound int       `json:"total_found"`
	Timestamp  time.Time `json:"timestamp"`
}

// SearchError reports that no approach returned usable results.
type SearchError struct {
	Query     string    `json:"query"`
	Err       string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Source is a numbered citation.
type Source struct {
	Index int `json:"index"`
	Result
}

// Analysis is the structured answer built from search results.
type Analysis struct {
	Query             string    `json:"userQuery"`
	Summary           string    `json:"summary"`
	Sources           []Source  `json:"sources"`
	FollowUpQuestions []string  `json:"followUpQuestions"`
	Timestamp         time.Time `json:"timestamp"`
}

// AnalysisError reports a failed analysis stage.
type AnalysisError struct {
	Query     string    `json:"userQuery"`
	Err       string    `json:"error,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (SearchResults) outcome() {}
func (SearchError) outcome()   {}
func (Analysis) outcome()      {}
func (AnalysisError) outcome() {}

// Failure is the error payload attached to a complete event.
type Failure struct {
	Type      string    `json:"type"`
	Query     string    `json:"query"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	FailureSearch   = "search_error"
	FailureAnalysis = "analysis_error"
)

// failureOf converts error outcomes to their wire payload.
func failureOf(o Outcome) *Failure {
	switch v := o.(type) {
	case SearchError:
		return &Failure{Type: FailureSearch, Query: v.Query, Error: v.Err, Message: v.Message, Timestamp: v.Timestamp}
	case AnalysisError:
		return &Failure{Type: FailureAnalysis, Query: v.Query, Error: v.Err, Message: v.Message, Timestamp: v.Timestamp}
	case SearchResults, Analysis:
		return nil
	}
	return nil
}

// marshalOutcome tags an outcome with its type for debug logging.
func marshalOutcome(o Outcome) ([]byte, error) {
	var kind string
	switch o.(type) {
	case SearchResults:
		kind = "search_results"
	case SearchError:
		kind = FailureSearch
	case Analysis:
		kind = "analysis"
	case AnalysisError:
		kind = FailureAnalysis
	}
	return json.Marshal(struct {
		Type string  `json:"type"`
		Data Outcome `json:"data"`
	}{Type: kind, Data: o})
}
