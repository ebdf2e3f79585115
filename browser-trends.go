package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

const (
	defaultBrowserBudget = 90 * time.Second
	maxGotoTimeout       = 30 * time.Second
	// contentSettle is the pause after navigation before the table is read.
	contentSettle = 2 * time.Second
)

// BrowserTrends scrapes the live Google Trends page with a headless browser. It reports
// as the google source, like the RSS feed, and is used instead of it when enabled.
type BrowserTrends struct {
	proxies  *WebshareClient
	maxItems int
	budget   time.Duration
}

func NewBrowserTrends(proxies *WebshareClient, maxItems int, budget time.Duration) *BrowserTrends {
	if maxItems <= 0 {
		maxItems = 10
	}
	if budget <= 0 {
		budget = defaultBrowserBudget
	}
	return &BrowserTrends{proxies: proxies, maxItems: maxItems, budget: budget}
}

func (b *BrowserTrends) Name() string        { return "google-trends-browser" }
func (b *BrowserTrends) Source() TrendSource { return SourceGoogle }

// CallTimeout covers a browser launch, the proxy lookup and a full page load.
func (b *BrowserTrends) CallTimeout() time.Duration { return b.budget }

func (b *BrowserTrends) FetchTrends(ctx context.Context, region string) ([]TrendingTopic, error) {
	trendURL := fmt.Sprintf("https://trends.google.com/trending?geo=%s&hours=24", region)

	content, err := b.renderPage(ctx, trendURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("could not parse HTML: %w", err)
	}

	topics := parseTrendsTable(doc, b.maxItems)
	for i := range topics {
		topics[i].Region = region
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("no trending topics found on %s", trendURL)
	}
	return topics, nil
}

func (b *BrowserTrends) renderPage(ctx context.Context, trendURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("could not start Playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return "", fmt.Errorf("could not launch browser: %w", err)
	}

	// Tear the browser down as soon as the caller gives up, not only when we return.
	shutdown := sync.OnceFunc(func() {
		if err := browser.Close(); err != nil {
			slog.Debug("[BrowserTrends] Error closing browser", slog.Any("error", err))
		}
		if err := pw.Stop(); err != nil {
			slog.Debug("[BrowserTrends] Error stopping Playwright", slog.Any("error", err))
		}
	})
	defer shutdown()
	stop := context.AfterFunc(ctx, shutdown)
	defer stop()

	contextOptions := playwright.BrowserNewContextOptions{}
	if b.proxies != nil {
		proxies, err := b.proxies.GetProxies(ctx)
		if err != nil {
			slog.Warn("[BrowserTrends] Could not fetch proxies, connecting directly", slog.Any("error", err))
		} else if len(proxies) > 0 {
			contextOptions.Proxy = &playwright.Proxy{Server: proxies[0]}
		}
	}

	bctx, err := browser.NewContext(contextOptions)
	if err != nil {
		return "", renderError(ctx, "could not create browser context", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return "", renderError(ctx, "could not create page", err)
	}

	if _, err = page.Goto(trendURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(gotoTimeout(ctx, time.Now()).Milliseconds())),
	}); err != nil {
		return "", renderError(ctx, "could not go to Google Trends", err)
	}

	select {
	case <-time.After(contentSettle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	content, err := page.Content()
	if err != nil {
		return "", renderError(ctx, "could not get page content", err)
	}
	return content, nil
}

// renderError prefers the context's error when the browser was closed because of it.
func renderError(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", msg, ctxErr)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// gotoTimeout fits the navigation into what is left of ctx, keeping room for the
// settle pause.
func gotoTimeout(ctx context.Context, now time.Time) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return maxGotoTimeout
	}
	left := deadline.Sub(now) - contentSettle - time.Second
	switch {
	case left > maxGotoTimeout:
		return maxGotoTimeout
	case left < time.Second:
		return time.Second
	}
	return left
}

// parseTrendsTable extracts active topics from the rendered trending table.
func parseTrendsTable(doc *goquery.Document, maxItems int) []TrendingTopic {
	var topics []TrendingTopic

	doc.Find("table tbody:nth-of-type(2) tr").EachWithBreak(func(i int, s *goquery.Selection) bool {
		cells := s.Find("td")
		if cells.Length() < 2 {
			return true
		}

		var relatedTerms []string
		cells.Eq(4).Find("button span:nth-child(4)").Each(func(i int, s *goquery.Selection) {
			if term := strings.TrimSpace(s.Text()); term != "" {
				relatedTerms = append(relatedTerms, term)
			}
		})

		keyword := strings.TrimSpace(cells.Eq(1).Children().First().Text())
		volume := strings.TrimSpace(cells.Eq(1).Find("div:nth-child(2) > div:first-child > div:first-child").Text())
		status := strings.TrimSpace(cells.Eq(1).Find("div:nth-child(2) > div:nth-child(2) > div:last-child").Text())

		if keyword == "" || status != "Active" {
			return true
		}

		topics = append(topics, TrendingTopic{
			Keyword:         keyword,
			Category:        "General",
			Volume:          parseVolume(volume),
			Source:          SourceGoogle,
			RelatedKeywords: relatedTerms,
		})
		return len(topics) < maxItems
	})

	return topics
}
