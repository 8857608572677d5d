package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Searcher runs the search stage. It returns SearchResults or SearchError,
// never a Go error.
type Searcher interface {
	Search(ctx context.Context, query string) Outcome
}

// WebSearcherConfig configures WebSearcher.
type WebSearcherConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// WebSearcher queries a SearXNG-style endpoint, trying a form POST that
// returns hypertext first and a JSON POST second.
type WebSearcher struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
	now     func() time.Time
}

const (
	approachForm = "form"
	approachJSON = "json"

	// homepageMaxLength separates a bare search homepage from a results page.
	homepageMaxLength = 10000
)

func NewWebSearcher(cfg WebSearcherConfig, log zerolog.Logger) *WebSearcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	return &WebSearcher{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		log:     log.With().Str("component", "web-search").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *WebSearcher) Search(ctx context.Context, query string) Outcome {
	attempts := []struct {
		name string
		send func(context.Context, string) (*resty.Response, error)
	}{
		{approachForm, s.sendForm},
		{approachJSON, s.sendJSON},
	}

	var lastErr error
	for _, attempt := range attempts {
		resp, err := attempt.send(ctx, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return SearchError{Query: query, Err: ctxErr.Error(), Message: "search cancelled", Timestamp: s.now()}
			}
			s.log.Warn().Err(err).Str("approach", attempt.name).Msg("search approach failed")
			lastErr = err
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			s.log.Warn().Int("status", resp.StatusCode()).Str("approach", attempt.name).Msg("search approach returned error status")
			lastErr = fmt.Errorf("%s approach: status %d", attempt.name, resp.StatusCode())
			continue
		}

		if results, ok := s.parse(query, resp.String(), attempt.name); ok {
			s.log.Debug().Str("approach", attempt.name).Int("results", len(results.Results)).Msg("search succeeded")
			return results
		}
		s.log.Debug().Str("approach", attempt.name).Msg("no results in response, trying next approach")
	}

	msg := "All search approaches failed to return results"
	errText := "No search results found"
	if lastErr != nil && !errors.Is(lastErr, context.Canceled) {
		errText = lastErr.Error()
	}
	return SearchError{Query: query, Err: errText, Message: msg, Timestamp: s.now()}
}

func (s *WebSearcher) parse(query, body, approach string) (SearchResults, bool) {
	now := s.now()
	if looksLikeResultsPage(body) {
		if results, ok := ParseHTML(query, body, approach, now); ok {
			return results, true
		}
	}
	if isHomepage(body) {
		return SearchResults{}, false
	}
	return ParseJSON(query, body, approach, now)
}

func looksLikeResultsPage(body string) bool {
	return strings.Contains(body, `<div class="result`) ||
		strings.Contains(body, `<article class="result`) ||
		strings.Contains(body, `id="results"`) ||
		(strings.Contains(body, "results") && len(body) > homepageMaxLength)
}

func isHomepage(body string) bool {
	return strings.Contains(body, "SearXNG") && len(body) < homepageMaxLength
}

func (s *WebSearcher) sendForm(ctx context.Context, query string) (*resty.Response, error) {
	return s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetFormData(map[string]string{
			"q":                query,
			"category_general": "1",
			"language":         "auto",
			"safesearch":       "0",
			"theme":            "simple",
		}).
		Post(s.baseURL)
}

func (s *WebSearcher) sendJSON(ctx context.Context, query string) (*resty.Response, error) {
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetBody(map[string]string{
			"q":        query,
			"format":   "json",
			"language": "en",
		})
	if s.apiKey != "" {
		req.SetAuthToken(s.apiKey)
	}
	return req.Post(s.baseURL)
}
