// Package web fetches seed pages and reduces them to prompt-sized text.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBytes = 2 << 20
	defaultMaxChars = 20000
	userAgent       = "Mozilla/5.0 (compatible; brandbot/1.0)"
)

// Fetcher implements ingest.Fetcher. Requests share one rate limiter.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
	maxChars int
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

func WithMaxChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxChars = n
		}
	}
}

// NewFetcher allows rps requests per second with a burst of one.
func NewFetcher(rps float64, opts ...Option) *Fetcher {
	if rps <= 0 {
		rps = 1
	}
	f := &Fetcher{
		client:   &http.Client{Timeout: 20 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		maxBytes: defaultMaxBytes,
		maxChars: defaultMaxChars,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", rawURL)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var text string
	if strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
		text = string(body)
	} else {
		text, err = pageText(string(body), base)
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
	}
	return truncate(text, f.maxChars), nil
}

// pageText keeps visible text and links, one block per line. Links are
// resolved against base so category URLs survive into the prompt.
func pageText(doc string, base *url.URL) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	var lines []string
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if depth > 64 {
			return
		}
		switch n.Type {
		case html.TextNode:
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				lines = append(lines, t)
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "template":
				return
			case "a":
				label := strings.Join(strings.Fields(nodeText(n)), " ")
				href := attr(n, "href")
				if label != "" && href != "" && !strings.HasPrefix(href, "#") {
					if u, err := base.Parse(href); err == nil {
						lines = append(lines, label+" ("+u.String()+")")
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return strings.Join(lines, "\n"), nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n[...truncated...]"
}
