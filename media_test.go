package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testGuardSettings() guardSettings {
	return guardSettings{Timeout: 200 * time.Millisecond, FailureThreshold: 100, Cooldown: time.Hour}
}

func TestCollectRunsCategoriesConcurrently(t *testing.T) {
	d := 80 * time.Millisecond
	b := sampleBundle()
	c := NewMediaCollector(MediaSources{
		Images:   &fakeImages{items: b.Images, delay: d},
		Social:   &fakeSocial{items: b.SocialPosts, delay: d},
		Videos:   &fakeVideos{items: b.Videos, delay: d},
		Articles: &fakeArticles{items: b.BackgroundArticles, delay: d},
	}, 5, testGuardSettings())

	start := time.Now()
	got := c.Collect(context.Background(), "topic", FeatureToggles{Images: true, Tweets: true, Videos: true})
	took := time.Since(start)

	assert.Less(t, took, 3*d)
	assert.Equal(t, b.Images, got.Images)
	assert.Equal(t, b.SocialPosts, got.SocialPosts)
	assert.Equal(t, b.Videos, got.Videos)
	assert.Equal(t, b.BackgroundArticles, got.BackgroundArticles)
	assert.Equal(t, []string{"fake-images", "fake-social", "fake-videos", "fake-articles"}, got.Providers)
}

func TestCollectSkipsDisabledCategories(t *testing.T) {
	images := &fakeImages{items: sampleBundle().Images}
	social := &fakeSocial{items: sampleBundle().SocialPosts}
	videos := &fakeVideos{items: sampleBundle().Videos}
	c := NewMediaCollector(MediaSources{Images: images, Social: social, Videos: videos}, 5, testGuardSettings())

	got := c.Collect(context.Background(), "topic", FeatureToggles{Images: true})

	assert.Len(t, got.Images, 2)
	assert.Empty(t, got.SocialPosts)
	assert.Empty(t, got.Videos)
	assert.Zero(t, social.calls.Load())
	assert.Zero(t, videos.calls.Load())
}

func TestCollectIsolatesFailingAndSlowCategories(t *testing.T) {
	b := sampleBundle()
	c := NewMediaCollector(MediaSources{
		Images:   &fakeImages{items: b.Images},
		Social:   &fakeSocial{delay: time.Second},
		Videos:   &fakeVideos{err: errFake},
		Articles: &fakeArticles{items: b.BackgroundArticles},
	}, 5, testGuardSettings())

	start := time.Now()
	got := c.Collect(context.Background(), "topic", FeatureToggles{Images: true, Tweets: true, Videos: true})

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, b.Images, got.Images)
	assert.Equal(t, b.BackgroundArticles, got.BackgroundArticles)
	assert.Empty(t, got.SocialPosts)
	assert.Empty(t, got.Videos)
	assert.Equal(t, []string{"fake-images", "fake-articles"}, got.Providers)
}

func TestCollectWithoutSources(t *testing.T) {
	got := NewMediaCollector(MediaSources{}, 0, testGuardSettings()).
		Collect(context.Background(), "topic", FeatureToggles{Images: true, Tweets: true, Videos: true})
	assert.Equal(t, MediaBundle{}, got)
}
