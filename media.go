package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type ImageSearcher interface {
	Name() string
	SearchImages(ctx context.Context, query string, limit int) ([]MediaImage, error)
}

type SocialSearcher interface {
	Name() string
	SearchPosts(ctx context.Context, query string, limit int) ([]SocialPost, error)
}

type VideoSearcher interface {
	Name() string
	SearchVideos(ctx context.Context, query string, limit int) ([]Video, error)
}

type ArticleSearcher interface {
	Name() string
	SearchArticles(ctx context.Context, query string, limit int) ([]BackgroundArticle, error)
}

// MediaSources wires the collector's adapters. A nil source contributes nothing.
type MediaSources struct {
	Images   ImageSearcher
	Social   SocialSearcher
	Videos   VideoSearcher
	Articles ArticleSearcher
}

// MediaCollector gathers supporting media for one topic. It performs no writes.
type MediaCollector struct {
	sources MediaSources
	limit   int

	imageGuard   *adapterGuard
	socialGuard  *adapterGuard
	videoGuard   *adapterGuard
	articleGuard *adapterGuard
}

func NewMediaCollector(sources MediaSources, limit int, settings guardSettings) *MediaCollector {
	if limit <= 0 {
		limit = 5
	}
	c := &MediaCollector{sources: sources, limit: limit}
	if sources.Images != nil {
		c.imageGuard = newAdapterGuard("media:"+sources.Images.Name(), settings)
	}
	if sources.Social != nil {
		c.socialGuard = newAdapterGuard("media:"+sources.Social.Name(), settings)
	}
	if sources.Videos != nil {
		c.videoGuard = newAdapterGuard("media:"+sources.Videos.Name(), settings)
	}
	if sources.Articles != nil {
		c.articleGuard = newAdapterGuard("media:"+sources.Articles.Name(), settings)
	}
	return c
}

// Collect queries every enabled category concurrently and waits for all of them. Each
// category is bounded by its own guard, so a slow or failing one only empties its own list.
// Background articles have no toggle and are always fetched.
func (c *MediaCollector) Collect(ctx context.Context, topic string, toggles FeatureToggles) MediaBundle {
	start := time.Now()
	var bundle MediaBundle
	var g errgroup.Group

	if toggles.Images && c.sources.Images != nil {
		g.Go(func() error {
			bundle.Images = guardedCall(ctx, c.imageGuard, topic, func(ctx context.Context) ([]MediaImage, error) {
				return c.sources.Images.SearchImages(ctx, topic, c.limit)
			})
			return nil
		})
	}
	if toggles.Tweets && c.sources.Social != nil {
		g.Go(func() error {
			bundle.SocialPosts = guardedCall(ctx, c.socialGuard, topic, func(ctx context.Context) ([]SocialPost, error) {
				return c.sources.Social.SearchPosts(ctx, topic, 2*c.limit)
			})
			return nil
		})
	}
	if toggles.Videos && c.sources.Videos != nil {
		g.Go(func() error {
			bundle.Videos = guardedCall(ctx, c.videoGuard, topic, func(ctx context.Context) ([]Video, error) {
				return c.sources.Videos.SearchVideos(ctx, topic, c.limit)
			})
			return nil
		})
	}
	if c.sources.Articles != nil {
		g.Go(func() error {
			bundle.BackgroundArticles = guardedCall(ctx, c.articleGuard, topic, func(ctx context.Context) ([]BackgroundArticle, error) {
				return c.sources.Articles.SearchArticles(ctx, topic, c.limit)
			})
			return nil
		})
	}
	_ = g.Wait()

	// Providers are appended after the join, in a fixed order.
	if len(bundle.Images) > 0 {
		bundle.Providers = append(bundle.Providers, c.sources.Images.Name())
	}
	if len(bundle.SocialPosts) > 0 {
		bundle.Providers = append(bundle.Providers, c.sources.Social.Name())
	}
	if len(bundle.Videos) > 0 {
		bundle.Providers = append(bundle.Providers, c.sources.Videos.Name())
	}
	if len(bundle.BackgroundArticles) > 0 {
		bundle.Providers = append(bundle.Providers, c.sources.Articles.Name())
	}

	slog.Info("[MediaCollector] Collected media",
		slog.String("topic", topic),
		slog.Int("images", len(bundle.Images)),
		slog.Int("posts", len(bundle.SocialPosts)),
		slog.Int("videos", len(bundle.Videos)),
		slog.Int("articles", len(bundle.BackgroundArticles)),
		slog.Duration("took", time.Since(start)))
	return bundle
}
