package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var errFake = errors.New("fake failure")

type fakeTrends struct {
	name   string
	source TrendSource
	topics []TrendingTopic
	err    error
	calls  atomic.Int32
}

func (f *fakeTrends) Name() string        { return f.name }
func (f *fakeTrends) Source() TrendSource { return f.source }
func (f *fakeTrends) FetchTrends(ctx context.Context, region string) ([]TrendingTopic, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]TrendingTopic, len(f.topics))
	copy(out, f.topics)
	return out, nil
}

type fakeImages struct {
	items []MediaImage
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeImages) Name() string { return "fake-images" }
func (f *fakeImages) SearchImages(ctx context.Context, query string, limit int) ([]MediaImage, error) {
	f.calls.Add(1)
	if err := sleepCtx(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.items, f.err
}

type fakeSocial struct {
	items []SocialPost
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeSocial) Name() string { return "fake-social" }
func (f *fakeSocial) SearchPosts(ctx context.Context, query string, limit int) ([]SocialPost, error) {
	f.calls.Add(1)
	if err := sleepCtx(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.items, f.err
}

type fakeVideos struct {
	items []Video
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeVideos) Name() string { return "fake-videos" }
func (f *fakeVideos) SearchVideos(ctx context.Context, query string, limit int) ([]Video, error) {
	f.calls.Add(1)
	if err := sleepCtx(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.items, f.err
}

type fakeArticles struct {
	items []BackgroundArticle
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeArticles) Name() string { return "fake-articles" }
func (f *fakeArticles) SearchArticles(ctx context.Context, query string, limit int) ([]BackgroundArticle, error) {
	f.calls.Add(1)
	if err := sleepCtx(ctx, f.delay); err != nil {
		return nil, err
	}
	return f.items, f.err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fakeGenerator answers body prompts with Body (or a body that uses every placeholder the
// prompt announces) and metadata prompts with Metadata.
type fakeGenerator struct {
	mu       sync.Mutex
	Body     string
	Metadata string
	BodyErr  error
	MetaErr  error
	Panic    string
	prompts  []GenerationRequest
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()
	if f.Panic != "" {
		panic(f.Panic)
	}
	if strings.Contains(req.Prompt, "metadata") {
		if f.MetaErr != nil {
			return "", f.MetaErr
		}
		return f.Metadata, nil
	}
	if f.BodyErr != nil {
		return "", f.BodyErr
	}
	if f.Body != "" {
		return f.Body, nil
	}
	return placeholderBody(req.Prompt), nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// placeholderBody emits one paragraph per placeholder listed in the prompt.
func placeholderBody(prompt string) string {
	var b strings.Builder
	b.WriteString("<h2>Overview</h2>\n<p>This story matters because technology keeps changing quickly.</p>\n")
	for _, m := range placeholderPattern.FindAllStringSubmatch(prompt, -1) {
		fmt.Fprintf(&b, "<p>Context paragraph.</p>\n[%s_PLACEHOLDER_%s]\n", m[1], m[2])
	}
	b.WriteString("<h2>Conclusion</h2>\n<p>Technology trends continue.</p>")
	return b.String()
}

func sampleBundle() MediaBundle {
	return MediaBundle{
		Images: []MediaImage{
			{URL: "https://img/1.jpg", AltText: "first", SourceName: "Unsplash", Attribution: "Photo by A on Unsplash"},
			{URL: "https://img/2.jpg", AltText: "second", SourceName: "Unsplash"},
		},
		SocialPosts: []SocialPost{
			{ID: "111", Text: "hot take", AuthorName: "Ada", Permalink: "https://twitter.com/ada/status/111", EngagementScore: 9},
		},
		Videos: []Video{
			{ID: "vid1", Title: "Explainer", URL: "https://www.youtube.com/watch?v=vid1", DurationLabel: "4:13"},
		},
		BackgroundArticles: []BackgroundArticle{
			{Title: "Coverage", URL: "https://news.example/a", Excerpt: "Something happened.", SourceName: "Example News"},
		},
		Providers: []string{"fake-images", "fake-social", "fake-videos", "fake-articles"},
	}
}
