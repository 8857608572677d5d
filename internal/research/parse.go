package research

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	MaxResults       = 5
	MaxTitleLength   = 200
	MaxContentLength = 500
)

// matcher selects the element that wraps a single search hit.
type matcher func(n *html.Node) bool

// resultMatchers are tried in order; the first that yields a result wins.
var resultMatchers = []matcher{
	func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, isResultClass) },
	func(n *html.Node) bool { return isElement(n, "article") && hasClass(n, isResultClass) },
	func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, mentionsResult) },
}

// isResultClass accepts "result" and its modifiers such as "result-default",
// but not list containers such as "results".
func isResultClass(class string) bool {
	return class == "result" || strings.HasPrefix(class, "result-") || strings.HasPrefix(class, "result_")
}

func mentionsResult(class string) bool {
	return strings.Contains(class, "result") && !strings.HasSuffix(class, "results")
}

func hasClass(n *html.Node, match func(string) bool) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		if match(class) {
			return true
		}
	}
	return false
}

// ParseHTML extracts search hits from a hypertext results page. ok is false
// when no matcher finds anything.
func ParseHTML(query, body, approach string, now time.Time) (SearchResults, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return SearchResults{}, false
	}

	for _, match := range resultMatchers {
		var results []Result
		seen := map[string]struct{}{}
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if match(n) {
				if r, ok := extractResult(n); ok {
					if _, dup := seen[r.URL]; !dup {
						seen[r.URL] = struct{}{}
						results = append(results, r)
					}
				}
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)

		if len(results) > 0 {
			return newSearchResults(query, approach, results, now), true
		}
	}
	return SearchResults{}, false
}

type jsonHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// ParseJSON extracts hits from a JSON search response of the form
// {"results": [...]}.
func ParseJSON(query, body, approach string, now time.Time) (SearchResults, bool) {
	var payload struct {
		Results []jsonHit `json:"results"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || len(payload.Results) == 0 {
		return SearchResults{}, false
	}

	results := make([]Result, 0, len(payload.Results))
	for _, hit := range payload.Results {
		title := strings.TrimSpace(hit.Title)
		if title == "" {
			title = "No title"
		}
		content := hit.Content
		if content == "" {
			content = hit.Description
		}
		source := hit.Source
		if source == "" {
			source = hostOf(hit.URL)
		}
		results = append(results, Result{
			Title:   clip(title, MaxTitleLength),
			URL:     hit.URL,
			Content: clip(strings.TrimSpace(content), MaxContentLength),
			Source:  source,
		})
	}
	return newSearchResults(query, approach, results, now), true
}

func newSearchResults(query, approach string, results []Result, now time.Time) SearchResults {
	total := len(results)
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return SearchResults{Query: query, Approach: approach, Results: results, TotalFound: total, Timestamp: now}
}

func extractResult(n *html.Node) (Result, bool) {
	title := ""
	if h := find(n, func(c *html.Node) bool { return isHeading(c) && find(c, isAnchor) != nil }); h != nil {
		title = text(find(h, isAnchor))
	}
	if title == "" {
		if a := find(n, func(c *html.Node) bool { return isAnchor(c) && strings.Contains(attr(c, "class"), "title") }); a != nil {
			title = text(a)
		}
	}
	if title == "" {
		if a := find(n, isAnchor); a != nil {
			title = text(a)
		}
	}

	link := ""
	if a := find(n, func(c *html.Node) bool { return c.Type == html.ElementNode && attr(c, "href") != "" }); a != nil {
		link = attr(a, "href")
	}
	source := hostOf(link)
	if title == "" || source == "" {
		return Result{}, false
	}

	content := ""
	for _, pick := range []matcher{
		func(c *html.Node) bool { return isElement(c, "p") && strings.Contains(attr(c, "class"), "content") },
		func(c *html.Node) bool { return isElement(c, "div") && strings.Contains(attr(c, "class"), "content") },
		func(c *html.Node) bool { return isElement(c, "p") },
	} {
		if c := find(n, pick); c != nil {
			content = text(c)
			break
		}
	}

	return Result{
		Title:   clip(title, MaxTitleLength),
		URL:     link,
		Content: clip(content, MaxContentLength),
		Source:  source,
	}, true
}

func find(n *html.Node, match matcher) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func isAnchor(n *html.Node) bool { return isElement(n, "a") }

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode || len(n.Data) != 2 || n.Data[0] != 'h' {
		return false
	}
	return n.Data[1] >= '1' && n.Data[1] <= '6'
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
