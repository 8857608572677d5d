package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxSummaryPoints  = 3
	maxFollowUps      = 3
	minSentenceLength = 20
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]`)
	priceWords    = regexp.MustCompile(`(?i)price|cost`)
)

// Analyze numbers the sources of a search and builds the extractive summary
// and follow-up questions.
func Analyze(results SearchResults, now time.Time) Outcome {
	if len(results.Results) == 0 {
		return AnalysisError{Query: results.Query, Message: "No search results to analyze", Timestamp: now}
	}

	sources := make([]Source, 0, len(results.Results))
	for i, r := range results.Results {
		sources = append(sources, Source{Index: i + 1, Result: r})
	}
	return Analysis{
		Query:             results.Query,
		Summary:           Summarize(results.Query, sources),
		Sources:           sources,
		FollowUpQuestions: FollowUpQuestions(results.Query),
		Timestamp:         now,
	}
}

// Summarize picks the first substantial sentence of up to three sources.
func Summarize(query string, sources []Source) string {
	if len(sources) == 0 {
		return "No information found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the search results for %q, here are the key findings:\n\n", query)
	for i, src := range sources {
		if i == maxSummaryPoints {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s [%d]", i+1, keyPoint(src), src.Index)
	}
	return b.String()
}

func keyPoint(src Source) string {
	for _, sentence := range sentenceSplit.Split(src.Content, -1) {
		if s := strings.TrimSpace(sentence); len(s) > minSentenceLength {
			return s
		}
	}
	return src.Title
}

// FollowUpQuestions templates at most three questions by query category.
func FollowUpQuestions(query string) []string {
	lower := strings.ToLower(query)
	var questions []string
	switch {
	case strings.Contains(lower, "price") || strings.Contains(lower, "cost"):
		subject := strings.Join(strings.Fields(priceWords.ReplaceAllString(query, "")), " ")
		questions = []string{
			fmt.Sprintf("What are the best deals for %s?", subject),
			fmt.Sprintf("Where can I buy %s at the lowest price?", subject),
		}
	case strings.Contains(lower, "compare") || containsWord(lower, comparisonWords):
		questions = []string{
			"What are the pros and cons of each option?",
			"Which option is better for different use cases?",
		}
	default:
		questions = []string{
			fmt.Sprintf("What are the latest developments in %s?", query),
			fmt.Sprintf("How does %s work?", query),
			fmt.Sprintf("What are the benefits of %s?", query),
		}
	}
	if len(questions) > maxFollowUps {
		questions = questions[:maxFollowUps]
	}
	return questions
}
