package main

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const googleTrendsFeedURL = "https://trends.google.com/trending/rss"

// GoogleTrendsFeed reads Google's daily trending searches from the public RSS feed.
type GoogleTrendsFeed struct {
	parser   *gofeed.Parser
	baseURL  string
	maxItems int
}

func NewGoogleTrendsFeed(client *http.Client, maxItems int) *GoogleTrendsFeed {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "Mozilla/5.0 (compatible; TrendWiseBot/1.0)"
	if maxItems <= 0 {
		maxItems = 10
	}
	return &GoogleTrendsFeed{parser: parser, baseURL: googleTrendsFeedURL, maxItems: maxItems}
}

func (g *GoogleTrendsFeed) Name() string        { return "google-trends-rss" }
func (g *GoogleTrendsFeed) Source() TrendSource { return SourceGoogle }

func (g *GoogleTrendsFeed) FetchTrends(ctx context.Context, region string) ([]TrendingTopic, error) {
	feedURL := fmt.Sprintf("%s?geo=%s", g.baseURL, region)
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching google trends feed for %s: %w", region, err)
	}

	var topics []TrendingTopic
	for _, item := range feed.Items {
		keyword := strings.TrimSpace(item.Title)
		if keyword == "" {
			continue
		}
		topic := TrendingTopic{
			Keyword:  keyword,
			Category: "General",
			Source:   SourceGoogle,
			Region:   region,
		}
		if ht, ok := item.Extensions["ht"]; ok {
			if traffic := ht["approx_traffic"]; len(traffic) > 0 {
				topic.Volume = parseVolume(traffic[0].Value)
			}
			for _, news := range ht["news_item"] {
				if titles := news.Children["news_item_title"]; len(titles) > 0 {
					if t := strings.TrimSpace(titles[0].Value); t != "" && len(topic.RelatedKeywords) < 3 {
						topic.RelatedKeywords = append(topic.RelatedKeywords, t)
					}
				}
			}
		}
		topics = append(topics, topic)
		if len(topics) >= g.maxItems {
			break
		}
	}
	return topics, nil
}

var volumePattern = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*([KMB])?`)

// parseVolume turns traffic labels such as "200K+", "1,000+" or "2.5M" into a count.
func parseVolume(s string) int64 {
	m := volumePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n *= 1e3
	case "M":
		n *= 1e6
	case "B":
		n *= 1e9
	}
	return int64(n)
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
