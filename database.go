package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrDuplicateArticle = errors.New("article already exists")
	ErrArticleNotFound  = errors.New("article not found")
)

// PersistenceError is a failed store operation. The topic is left unprocessed.
type PersistenceError struct {
	Op   string
	Slug string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Slug, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ArticleFilter struct {
	Status         ArticleStatus
	Tag            string
	TopicKey       string
	PublishedAfter time.Time
	Search         string
}

type ArticlePage struct {
	Items      []GeneratedArticle `json:"items"`
	TotalCount int64              `json:"totalCount"`
}

// ArticleStore is the persistence gateway. Slug and topic key are unique at the storage layer.
type ArticleStore interface {
	Connect(ctx context.Context) error
	SaveArticle(ctx context.Context, article *GeneratedArticle, originTopic string, sources []string) (string, error)
	// FindBySlug returns nil, nil when no article has the slug.
	FindBySlug(ctx context.Context, slug string) (*GeneratedArticle, error)
	ListArticles(ctx context.Context, page, pageSize int, filter ArticleFilter) (ArticlePage, error)
	IncrementViewCount(ctx context.Context, slug string) error
	IncrementLikeCount(ctx context.Context, slug string) error
	UpdateStatus(ctx context.Context, slug string, status ArticleStatus) error
	Disconnect() error
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// prepareForSave stamps identity, timestamps and provenance on a new article.
func prepareForSave(article *GeneratedArticle, originTopic string, sources []string, now time.Time) {
	article.ID = uuid.New().String()
	article.Slug = Slugify(article.Slug)
	article.CreatedAt = now
	article.UpdatedAt = now
	if !article.Status.Valid() {
		article.Status = StatusDraft
	}
	if article.Status == StatusPublished && article.PublishedAt == nil {
		article.PublishedAt = &now
	}
	article.Provenance.OriginTopic = originTopic
	article.Provenance.ContributingSources = append([]string(nil), sources...)
}

// Models
type articleRecord struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primary_key"`
	Title                string           `gorm:"not null;type:text"`
	Slug                 string           `gorm:"not null;uniqueIndex"`
	TopicKey             string           `gorm:"column:topic_key;not null;uniqueIndex"`
	MetaDescription      string           `gorm:"type:text"`
	Excerpt              string           `gorm:"type:text"`
	Content              string           `gorm:"not null;type:text"`
	Tags                 pq.StringArray   `gorm:"type:text[];default:'{}'"`
	EstimatedReadMinutes int              `gorm:"not null;default:1"`
	OpenGraph            OpenGraphFields  `gorm:"type:jsonb;serializer:json"`
	SearchMeta           SearchMetaFields `gorm:"type:jsonb;serializer:json"`
	EmbeddedMedia        MediaManifest    `gorm:"type:jsonb;serializer:json"`
	Status               string           `gorm:"type:text;not null;default:'draft';index"`
	OriginTopic          string           `gorm:"type:text;not null"`
	GenerationMethod     string           `gorm:"type:text"`
	ContributingSources  pq.StringArray   `gorm:"type:text[];default:'{}'"`
	ViewCount            int64            `gorm:"not null;default:0"`
	LikeCount            int64            `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PublishedAt          *time.Time `gorm:"index"`
}

func (articleRecord) TableName() string {
	return "generated_article"
}

func recordFromArticle(a *GeneratedArticle) (articleRecord, error) {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return articleRecord{}, fmt.Errorf("invalid article id %q: %w", a.ID, err)
	}
	return articleRecord{
		ID:                   id,
		Title:                a.Title,
		Slug:                 a.Slug,
		TopicKey:             Slugify(a.Provenance.OriginTopic),
		MetaDescription:      a.MetaDescription,
		Excerpt:              a.Excerpt,
		Content:              a.Content,
		Tags:                 pq.StringArray(a.Tags),
		EstimatedReadMinutes: a.EstimatedReadMinutes,
		OpenGraph:            a.OpenGraph,
		SearchMeta:           a.SearchMeta,
		EmbeddedMedia:        a.EmbeddedMedia,
		Status:               string(a.Status),
		OriginTopic:          a.Provenance.OriginTopic,
		GenerationMethod:     a.Provenance.GenerationMethod,
		ContributingSources:  pq.StringArray(a.Provenance.ContributingSources),
		ViewCount:            a.ViewCount,
		LikeCount:            a.LikeCount,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
		PublishedAt:          a.PublishedAt,
	}, nil
}

func (r articleRecord) toArticle() GeneratedArticle {
	return GeneratedArticle{
		ID:                   r.ID.String(),
		Title:                r.Title,
		Slug:                 r.Slug,
		MetaDescription:      r.MetaDescription,
		Excerpt:              r.Excerpt,
		Content:              r.Content,
		Tags:                 []string(r.Tags),
		EstimatedReadMinutes: r.EstimatedReadMinutes,
		OpenGraph:            r.OpenGraph,
		SearchMeta:           r.SearchMeta,
		EmbeddedMedia:        r.EmbeddedMedia,
		Status:               ArticleStatus(r.Status),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		PublishedAt:          r.PublishedAt,
		ViewCount:            r.ViewCount,
		LikeCount:            r.LikeCount,
		Provenance: Provenance{
			OriginTopic:         r.OriginTopic,
			GenerationMethod:    r.GenerationMethod,
			ContributingSources: []string(r.ContributingSources),
		},
	}
}

// PostgresStore implements ArticleStore with gorm on PostgreSQL.
type PostgresStore struct {
	dsn string

	mu sync.Mutex
	db *gorm.DB
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// Connect opens the pool and migrates the schema. Calling it again is a no-op.
func (s *PostgresStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if s.dsn == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&articleRecord{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.db = db
	slog.Info("[PostgresStore] Connected")
	return nil
}

func (s *PostgresStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("store not connected")
	}
	return s.db.WithContext(ctx), nil
}

func (s *PostgresStore) SaveArticle(ctx context.Context, article *GeneratedArticle, originTopic string, sources []string) (string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", &PersistenceError{Op: "save", Slug: article.Slug, Err: err}
	}
	prepareForSave(article, originTopic, sources, time.Now().UTC())

	rec, err := recordFromArticle(article)
	if err != nil {
		return "", &PersistenceError{Op: "save", Slug: article.Slug, Err: err}
	}
	if err := db.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = ErrDuplicateArticle
		}
		return "", &PersistenceError{Op: "save", Slug: article.Slug, Err: err}
	}
	return article.ID, nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*GeneratedArticle, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rec articleRecord
	if err := db.Where("slug = ?", slug).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding article %q: %w", slug, err)
	}
	a := rec.toArticle()
	return &a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, page, pageSize int, filter ArticleFilter) (ArticlePage, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return ArticlePage{}, err
	}
	page, pageSize = normalizePaging(page, pageSize)

	q := db.Model(&articleRecord{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Tag != "" {
		q = q.Where("? = ANY(tags)", filter.Tag)
	}
	if filter.TopicKey != "" {
		q = q.Where("topic_key = ?", filter.TopicKey)
	}
	if !filter.PublishedAfter.IsZero() {
		q = q.Where("published_at >= ?", filter.PublishedAfter)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("title ILIKE ? OR excerpt ILIKE ?", like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ArticlePage{}, fmt.Errorf("error counting articles: %w", err)
	}

	var recs []articleRecord
	if err := q.Order("published_at DESC NULLS LAST").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&recs).Error; err != nil {
		return ArticlePage{}, fmt.Errorf("error listing articles: %w", err)
	}

	out := ArticlePage{Items: make([]GeneratedArticle, 0, len(recs)), TotalCount: total}
	for _, r := range recs {
		out.Items = append(out.Items, r.toArticle())
	}
	return out, nil
}

func (s *PostgresStore) IncrementViewCount(ctx context.Context, slug string) error {
	return s.increment(ctx, slug, "view_count")
}

func (s *PostgresStore) IncrementLikeCount(ctx context.Context, slug string) error {
	return s.increment(ctx, slug, "like_count")
}

func (s *PostgresStore) increment(ctx context.Context, slug, column string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&articleRecord{}).Where("slug = ?", slug).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return fmt.Errorf("error incrementing %s for %q: %w", column, slug, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// UpdateStatus moves an article between states; publishing stamps published_at only once.
func (s *PostgresStore) UpdateStatus(ctx context.Context, slug string, status ArticleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	updates := map[string]any{"status": string(status), "updated_at": now}
	if status == StatusPublished {
		updates["published_at"] = gorm.Expr("COALESCE(published_at, ?)", now)
	}
	res := db.Model(&articleRecord{}).Where("slug = ?", slug).UpdateColumns(updates)
	if res.Error != nil {
		return fmt.Errorf("error updating status for %q: %w", slug, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrArticleNotFound
	}
	return nil
}

func (s *PostgresStore) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}
