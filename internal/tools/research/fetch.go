package research

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"briefer/internal/logging"
	"briefer/internal/schema"

	"golang.org/x/net/html"
)

// DefaultFetchTimeout bounds a single page fetch.
const DefaultFetchTimeout = 10 * time.Second

// maxFetchBody caps how much raw HTML is read before paragraph extraction.
const maxFetchBody = 4 << 20

// Fetcher turns a URL into readable page text. Implementations never fail:
// any problem yields the empty string.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// HTTPFetcher downloads a page and keeps the text of its <p> elements.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxChars   int
}

// NewHTTPFetcher creates a fetcher. Zero values fall back to defaults.
func NewHTTPFetcher(userAgent string, timeout time.Duration, maxChars int) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxChars <= 0 {
		maxChars = schema.MaxPageText
	}
	return &HTTPFetcher{
		httpClient: &http.Client{},
		userAgent:  userAgent,
		timeout:    timeout,
		maxChars:   maxChars,
	}
}

// Fetch returns the page's paragraph text joined by newlines, truncated to
// the configured limit.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logging.ResearchDebug("fetch %s: %v", url, err)
		return ""
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		logging.ResearchDebug("fetch %s: %v", url, err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		logging.ResearchDebug("fetch %s: read: %v", url, err)
		return ""
	}

	text := schema.Truncate(ParagraphText(string(body)), f.maxChars)
	logging.ResearchDebug("fetch %s: status=%d chars=%d", url, resp.StatusCode, len(text))
	return text
}

// ParagraphText extracts the text of every <p> element in document order,
// one paragraph per line.
func ParagraphText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var paras []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			paras = append(paras, textContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(paras, "\n")
}
