package jobsource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// descriptionSelectors are tried in order against a posting page. Job boards
// render the body under one of a few well-known containers.
var descriptionSelectors = []string{
	"section.adp-body",
	"div.job-description",
	"div[class*='jobDescription']",
	"article",
}

// Scraper fetches the full job description behind a posting's redirect URL.
// Sources usually deliver a truncated snippet; scoring works better on the
// full text.
type Scraper struct {
	http      *http.Client
	userAgent string
}

// NewScraper creates a Scraper with a browser-like user agent, which most
// boards require before serving the rendered page.
func NewScraper() *Scraper {
	return &Scraper{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}

// FullDescription fetches and extracts the posting body. Callers treat any
// error as "keep the snippet".
func (s *Scraper) FullDescription(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("posting page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse posting page: %w", err)
	}
	return ExtractDescription(doc)
}

// ExtractDescription pulls the description text out of a parsed posting page
func ExtractDescription(doc *goquery.Document) (string, error) {
	for _, selector := range descriptionSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := normalizeWhitespace(sel.Text())
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("no description container found")
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
