package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxExcerptRunes = 300

var skipDomains = []string{
	"instagram.com",
	"facebook.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"youtube.com",
	"reddit.com",
}

var (
	repeatedPunct = regexp.MustCompile(`([.!?])\s*[.!?]+`)
	inlineURL     = regexp.MustCompile(`https?://\S+`)
)

// fetchExcerpt loads a background article page and returns a short plain-text excerpt:
// the meta description when present, otherwise the first substantial paragraph.
func fetchExcerpt(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	if !strings.HasPrefix(pageURL, "http") {
		return "", fmt.Errorf("non-HTTP URL: %s", pageURL)
	}
	for _, domain := range skipDomains {
		if strings.Contains(pageURL, domain) {
			return "", fmt.Errorf("skipping social media URL: %s", pageURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", fmt.Errorf("invalid content type: %s", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	return extractExcerpt(doc), nil
}

func extractExcerpt(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if desc, ok := doc.Find(sel).First().Attr("content"); ok {
			if desc = cleanText(desc); desc != "" {
				return truncateRunes(desc, maxExcerptRunes)
			}
		}
	}

	doc.Find("script, style, nav, header, footer, iframe, noscript").Remove()

	var excerpt string
	scope := doc.Find("article, [role='main'], .main-content, #main-content, .post-content, .article-content, .entry-content")
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	scope.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len(text) < 80 {
			return true
		}
		excerpt = text
		return false
	})
	return truncateRunes(excerpt, maxExcerptRunes)
}

// cleanText removes extra whitespace and normalizes text
func cleanText(text string) string {
	// Common phrases to remove (case insensitive)
	boilerplate := []string{
		"accept cookies",
		"cookie policy",
		"privacy policy",
		"terms of service",
		"all rights reserved",
		"subscribe to our newsletter",
		"sign up for our newsletter",
		"share this article",
		"advertisement",
	}

	var cleanedLines []string
	for _, line := range strings.Split(text, "\n") {
		if len(strings.TrimSpace(line)) < 4 {
			continue
		}
		lowerLine := strings.ToLower(line)
		keep := true
		for _, phrase := range boilerplate {
			if strings.Contains(lowerLine, phrase) {
				keep = false
				break
			}
		}
		if keep {
			cleanedLines = append(cleanedLines, line)
		}
	}

	text = strings.Join(cleanedLines, " ")
	text = repeatedPunct.ReplaceAllString(text, "$1")
	text = inlineURL.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
