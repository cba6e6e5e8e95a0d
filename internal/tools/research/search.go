// Package research holds the web collaborators of the brief pipeline:
// a search backend that returns ranked hits and fetchers that turn a URL
// into readable page text.
package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"briefer/internal/logging"

	"golang.org/x/net/html"
)

const (
	// DefaultSearchURL is the DuckDuckGo HTML endpoint (no API key required).
	DefaultSearchURL = "https://html.duckduckgo.com/html/"
	// DefaultUserAgent is sent on every outbound request.
	DefaultUserAgent = "Mozilla/5.0"

	maxSearchBody = 1 << 20
	uddgPrefix    = "//duckduckgo.com/l/?uddg="
)

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher returns up to k results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML interface.
type DuckDuckGoSearcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
}

// NewDuckDuckGoSearcher creates a searcher. Empty values fall back to defaults.
func NewDuckDuckGoSearcher(baseURL, userAgent string, timeout time.Duration) *DuckDuckGoSearcher {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGoSearcher{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Search performs a search and returns at most k results.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	searchURL := s.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	timer := logging.StartTimer(logging.CategoryResearch, "search")
	defer timer.Stop()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	results, err := parseDuckDuckGoResults(string(body), k)
	if err != nil {
		return nil, err
	}
	logging.Research("search %q: %d results", query, len(results))
	return results, nil
}

// parseDuckDuckGoResults extracts search results from DuckDuckGo HTML.
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && hasClass(n, "results_links") {
			if r := extractResult(n); r.URL != "" && r.Title != "" {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult extracts a single search result from a result div.
func extractResult(n *html.Node) SearchResult {
	var result SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				result.URL = attrValue(n, "href")
				result.Title = textContent(n)
			case hasClass(n, "result__snippet"):
				result.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	result.URL = decodeRedirect(result.URL)
	return result
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func decodeRedirect(raw string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(raw, "https:"), "http:")
	if !strings.HasPrefix(rest, uddgPrefix) {
		return raw
	}
	encoded := strings.TrimPrefix(rest, uddgPrefix)
	if idx := strings.Index(encoded, "&"); idx > 0 {
		encoded = encoded[:idx]
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return raw
	}
	return decoded
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attrValue(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns all text within a node, whitespace-normalized.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			getText(c)
		}
	}
	getText(n)
	return strings.TrimSpace(sb.String())
}
