package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ArticleStore with the same uniqueness rules as PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]*GeneratedArticle // by slug
	topics   map[string]string            // topic key -> slug
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[string]*GeneratedArticle),
		topics:   make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Connect(ctx context.Context) error { return nil }
func (m *MemoryStore) Disconnect() error                 { return nil }

func (m *MemoryStore) SaveArticle(ctx context.Context, article *GeneratedArticle, originTopic string, sources []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slug := Slugify(article.Slug)
	topicKey := Slugify(originTopic)
	if _, ok := m.articles[slug]; ok {
		return "", &PersistenceError{Op: "save", Slug: slug, Err: ErrDuplicateArticle}
	}
	if _, ok := m.topics[topicKey]; ok {
		return "", &PersistenceError{Op: "save", Slug: slug, Err: ErrDuplicateArticle}
	}

	prepareForSave(article, originTopic, sources, m.now())
	stored := cloneArticle(*article)
	m.articles[slug] = &stored
	m.topics[topicKey] = slug
	return article.ID, nil
}

func (m *MemoryStore) FindBySlug(ctx context.Context, slug string) (*GeneratedArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[slug]
	if !ok {
		return nil, nil
	}
	out := cloneArticle(*a)
	return &out, nil
}

func (m *MemoryStore) ListArticles(ctx context.Context, page, pageSize int, filter ArticleFilter) (ArticlePage, error) {
	page, pageSize = normalizePaging(page, pageSize)

	m.mu.RLock()
	var matched []GeneratedArticle
	for slug, a := range m.articles {
		if filter.TopicKey != "" && m.topics[filter.TopicKey] != slug {
			continue
		}
		if matchesFilter(a, filter) {
			matched = append(matched, cloneArticle(*a))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.PublishedAt != nil && b.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		case a.PublishedAt != nil && b.PublishedAt == nil:
			return true
		case a.PublishedAt == nil && b.PublishedAt != nil:
			return false
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Slug < b.Slug
	})

	out := ArticlePage{Items: []GeneratedArticle{}, TotalCount: int64(len(matched))}
	start := (page - 1) * pageSize
	if start < len(matched) {
		end := start + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = matched[start:end]
	}
	return out, nil
}

func matchesFilter(a *GeneratedArticle, f ArticleFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range a.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.PublishedAfter.IsZero() && (a.PublishedAt == nil || a.PublishedAt.Before(f.PublishedAfter)) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Title), q) && !strings.Contains(strings.ToLower(a.Excerpt), q) {
			return false
		}
	}
	return true
}

func (m *MemoryStore) IncrementViewCount(ctx context.Context, slug string) error {
	return m.update(slug, func(a *GeneratedArticle) { a.ViewCount++ })
}

func (m *MemoryStore) IncrementLikeCount(ctx context.Context, slug string) error {
	return m.update(slug, func(a *GeneratedArticle) { a.LikeCount++ })
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, slug string, status ArticleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	now := m.now()
	return m.update(slug, func(a *GeneratedArticle) {
		a.Status = status
		a.UpdatedAt = now
		if status == StatusPublished && a.PublishedAt == nil {
			a.PublishedAt = &now
		}
	})
}

func (m *MemoryStore) update(slug string, fn func(a *GeneratedArticle)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[slug]
	if !ok {
		return ErrArticleNotFound
	}
	fn(a)
	return nil
}

func cloneArticle(a GeneratedArticle) GeneratedArticle {
	a.Tags = append([]string(nil), a.Tags...)
	a.Provenance.ContributingSources = append([]string(nil), a.Provenance.ContributingSources...)
	a.EmbeddedMedia.InlineImages = append([]EmbeddedImage(nil), a.EmbeddedMedia.InlineImages...)
	a.EmbeddedMedia.EmbeddedPosts = append([]EmbeddedPost(nil), a.EmbeddedMedia.EmbeddedPosts...)
	a.EmbeddedMedia.EmbeddedVideos = append([]EmbeddedVideo(nil), a.EmbeddedMedia.EmbeddedVideos...)
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		a.PublishedAt = &t
	}
	return a
}
