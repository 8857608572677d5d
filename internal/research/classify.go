package research

import "strings"

// Route is the handling chosen for a question.
type Route string

const (
	RouteDirect            Route = "direct"
	RouteSearchThenAnalyze Route = "search_then_analyze"
)

// explicitSearch always triggers a web search.
var explicitSearch = []string{"search", "find", "look up", "lookup"}

// searchPhrases signal time-sensitive, comparative or data-seeking questions.
var searchPhrases = []string{
	"research", "latest", "current", "news", "recent", "today",
	"this week", "this month", "this year", "2024", "2025",
	"what is happening", "trending", "popular", "compare",
	"price", "cost", "reviews", "opinions", "statistics",
	"information", "facts", "details",
	"how much", "how many", "what is the",
}

// searchWords only count as whole words; as substrings they match too much
// ordinary text ("stop", "vest", "update").
var searchWords = map[string]struct{}{
	"best": {}, "top": {}, "data": {}, "vs": {}, "versus": {},
}

// Classify picks Direct or SearchThenAnalyze for question.
func Classify(question string) Route {
	q := strings.ToLower(question)
	for _, kw := range explicitSearch {
		if strings.Contains(q, kw) {
			return RouteSearchThenAnalyze
		}
	}
	for _, kw := range searchPhrases {
		if strings.Contains(q, kw) {
			return RouteSearchThenAnalyze
		}
	}
	if containsWord(q, searchWords) {
		return RouteSearchThenAnalyze
	}
	return RouteDirect
}

// comparisonWords mark "X vs Y" questions.
var comparisonWords = map[string]struct{}{"vs": {}, "versus": {}}

// containsWord reports whether lower-cased q has a whole word from set.
// A trailing or leading dot is ignored so "vs." still counts.
func containsWord(q string, set map[string]struct{}) bool {
	for _, word := range strings.FieldsFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.')
	}) {
		if _, ok := set[strings.Trim(word, ".")]; ok {
			return true
		}
	}
	return false
}
