package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// ArticleSearchClient finds recent news coverage of a topic with Google Custom Search.
type ArticleSearchClient struct {
	service        *customsearch.Service
	searchEngineID string
	scrapeClient   *http.Client
}

func NewArticleSearchClient(ctx context.Context, apiKey, searchEngineID string, scrapeClient *http.Client, opts ...option.ClientOption) (*ArticleSearchClient, error) {
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}
	return &ArticleSearchClient{service: service, searchEngineID: searchEngineID, scrapeClient: scrapeClient}, nil
}

func (c *ArticleSearchClient) Name() string { return "google-search" }

type searchPagemap struct {
	Metatags []map[string]string `json:"metatags"`
}

func (c *ArticleSearchClient) SearchArticles(ctx context.Context, query string, limit int) ([]BackgroundArticle, error) {
	if c.searchEngineID == "" {
		return nil, fmt.Errorf("GOOGLE_SEARCH_ENGINE_ID must be set")
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	resp, err := c.service.Cse.List().
		Cx(c.searchEngineID).
		Q(query + " news").
		Num(int64(limit)).
		DateRestrict("w1").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("custom search for %q: %w", query, err)
	}

	var articles []BackgroundArticle
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		a := BackgroundArticle{
			Title:      strings.TrimSpace(item.Title),
			URL:        item.Link,
			Excerpt:    cleanText(item.Snippet),
			SourceName: item.DisplayLink,
		}

		var pm searchPagemap
		if len(item.Pagemap) > 0 && json.Unmarshal(item.Pagemap, &pm) == nil {
			for _, tags := range pm.Metatags {
				if a.PublishedAt == "" {
					a.PublishedAt = firstNonEmpty(tags["article:published_time"], tags["og:updated_time"], tags["date"])
				}
				if site := tags["og:site_name"]; site != "" {
					a.SourceName = site
				}
			}
		}

		if a.Excerpt == "" && c.scrapeClient != nil {
			excerpt, err := fetchExcerpt(ctx, c.scrapeClient, a.URL)
			if err != nil {
				slog.Debug("[ArticleSearch] Could not scrape excerpt", slog.String("url", a.URL), slog.Any("error", err))
			}
			a.Excerpt = excerpt
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
