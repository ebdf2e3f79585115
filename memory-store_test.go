package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArticle(title string, status ArticleStatus, tags ...string) *GeneratedArticle {
	return &GeneratedArticle{
		Title:   title,
		Slug:    Slugify(title),
		Excerpt: "About " + title,
		Content: "<p>" + title + "</p>",
		Tags:    tags,
		Status:  status,
	}
}

func TestMemoryStoreSaveAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Connect(ctx))

	id, err := s.SaveArticle(ctx, newArticle("Quantum Computing", StatusPublished, "Quantum"), "Quantum Computing", []string{"google", "unsplash"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.FindBySlug(ctx, "quantum-computing")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.NotNil(t, got.PublishedAt)
	assert.Equal(t, []string{"google", "unsplash"}, got.Provenance.ContributingSources)

	missing, err := s.FindBySlug(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.SaveArticle(ctx, newArticle("Quantum Computing", StatusDraft), "Quantum Computing", nil)
	require.NoError(t, err)

	_, err = s.SaveArticle(ctx, newArticle("Quantum Computing", StatusDraft), "Something Else", nil)
	assert.True(t, errors.Is(err, ErrDuplicateArticle))

	_, err = s.SaveArticle(ctx, newArticle("A Different Title", StatusDraft), "quantum computing", nil)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, perr, ErrDuplicateArticle)
}

func TestMemoryStoreListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Hour) }

	for _, a := range []*GeneratedArticle{
		newArticle("Old Story", StatusPublished, "AI"),
		newArticle("Draft Story", StatusDraft, "AI"),
		newArticle("New Story", StatusPublished, "Go"),
	} {
		_, err := s.SaveArticle(ctx, a, a.Title, nil)
		require.NoError(t, err)
	}

	all, err := s.ListArticles(ctx, 1, 10, ArticleFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.TotalCount)
	assert.Equal(t, []string{"new-story", "old-story", "draft-story"}, slugsOf(all.Items))

	published, err := s.ListArticles(ctx, 1, 10, ArticleFilter{Status: StatusPublished, Tag: "AI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"old-story"}, slugsOf(published.Items))

	page2, err := s.ListArticles(ctx, 2, 2, ArticleFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft-story"}, slugsOf(page2.Items))

	byTopic, err := s.ListArticles(ctx, 1, 10, ArticleFilter{TopicKey: "new-story"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-story"}, slugsOf(byTopic.Items))

	search, err := s.ListArticles(ctx, 1, 10, ArticleFilter{Search: "draft"})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft-story"}, slugsOf(search.Items))

	recent, err := s.ListArticles(ctx, 1, 10, ArticleFilter{PublishedAfter: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-story"}, slugsOf(recent.Items))
}

func TestMemoryStoreCountersAndStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.SaveArticle(ctx, newArticle("Story", StatusDraft), "Story", nil)
	require.NoError(t, err)

	require.NoError(t, s.IncrementViewCount(ctx, "story"))
	require.NoError(t, s.IncrementViewCount(ctx, "story"))
	require.NoError(t, s.IncrementLikeCount(ctx, "story"))
	assert.ErrorIs(t, s.IncrementViewCount(ctx, "missing"), ErrArticleNotFound)

	require.NoError(t, s.UpdateStatus(ctx, "story", StatusPublished))
	got, _ := s.FindBySlug(ctx, "story")
	assert.EqualValues(t, 2, got.ViewCount)
	assert.EqualValues(t, 1, got.LikeCount)
	assert.Equal(t, StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	first := *got.PublishedAt

	require.NoError(t, s.UpdateStatus(ctx, "story", StatusArchived))
	require.NoError(t, s.UpdateStatus(ctx, "story", StatusPublished))
	got, _ = s.FindBySlug(ctx, "story")
	assert.Equal(t, first, *got.PublishedAt)

	assert.Error(t, s.UpdateStatus(ctx, "story", ArticleStatus("deleted")))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.SaveArticle(ctx, newArticle("Story", StatusDraft, "a"), "Story", nil)
	require.NoError(t, err)

	got, _ := s.FindBySlug(ctx, "story")
	got.Tags[0] = "mutated"
	again, _ := s.FindBySlug(ctx, "story")
	assert.Equal(t, "a", again.Tags[0])
}

func slugsOf(items []GeneratedArticle) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.Slug)
	}
	return out
}
