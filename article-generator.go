package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrGeneration marks a topic whose article could not be synthesized.
var ErrGeneration = errors.New("generation failed")

type GenerationError struct {
	Topic string
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %q at %s: %v", e.Topic, e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

const (
	bodyTemperature     = 0.7
	metadataTemperature = 0.5
	metadataTokenBudget = 500
	wordsPerMinute      = 200
	maxTags             = 8
)

var genericTags = []string{"Technology", "Innovation", "Trends", "Analysis", "Insights"}

var (
	placeholderPattern = regexp.MustCompile(`\[?(IMAGE|TWEET|VIDEO)_PLACEHOLDER_(\d+)\]?`)
	wrappedPlaceholder = regexp.MustCompile(`<p>\s*(\[?(?:IMAGE|TWEET|VIDEO)_PLACEHOLDER_\d+\]?)\s*</p>`)
	embedToken         = regexp.MustCompile("\x00(\\d+)\x00")
	codeFence          = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	tagWord            = regexp.MustCompile(`[a-z]{4,}`)
)

type SynthesizerOptions struct {
	SiteBaseURL   string
	AuthorName    string
	FeaturedImage string
}

// ContentSynthesizer turns a topic and its media bundle into an unsaved article.
type ContentSynthesizer struct {
	gen       Generator
	opts      SynthesizerOptions
	sanitizer *bluemonday.Policy
	stripper  *bluemonday.Policy
}

func NewContentSynthesizer(gen Generator, opts SynthesizerOptions) *ContentSynthesizer {
	if opts.AuthorName == "" {
		opts.AuthorName = "TrendWise AI"
	}
	stripper := bluemonday.StrictPolicy()
	stripper.AddSpaceWhenStrippingTag(true)
	return &ContentSynthesizer{
		gen:       gen,
		opts:      opts,
		sanitizer: bluemonday.UGCPolicy(),
		stripper:  stripper,
	}
}

// Synthesize makes one body call and one metadata call. Only a failed call, an empty body
// or an unresolved placeholder fails the topic; unusable metadata falls back to defaults.
func (s *ContentSynthesizer) Synthesize(ctx context.Context, topic string, bundle MediaBundle, targetWords int) (*GeneratedArticle, error) {
	raw, err := s.gen.Generate(ctx, GenerationRequest{
		System:          "You are an expert technology journalist who writes accurate, engaging long-form articles in clean HTML.",
		Prompt:          buildBodyPrompt(topic, bundle, targetWords),
		MaxOutputTokens: bodyTokenBudget(targetWords),
		Temperature:     bodyTemperature,
	})
	if err != nil {
		return nil, &GenerationError{Topic: topic, Stage: "body", Err: err}
	}

	body := s.sanitizer.Sanitize(stripCodeFence(raw))
	if strings.TrimSpace(s.stripper.Sanitize(body)) == "" {
		return nil, &GenerationError{Topic: topic, Stage: "body", Err: errors.New("model returned an empty body")}
	}

	content, manifest, left := embedMedia(topic, body, bundle)
	if len(left) > 0 {
		return nil, &GenerationError{Topic: topic, Stage: "placeholders", Err: fmt.Errorf("unresolved placeholders %v", left)}
	}

	plain := html.UnescapeString(s.stripper.Sanitize(content))
	words := len(strings.Fields(plain))

	metaRaw, err := s.gen.Generate(ctx, GenerationRequest{
		Prompt:          buildMetadataPrompt(topic, plain),
		MaxOutputTokens: metadataTokenBudget,
		Temperature:     metadataTemperature,
	})
	if err != nil {
		return nil, &GenerationError{Topic: topic, Stage: "metadata", Err: err}
	}
	meta := resolveMetadata(topic, parseMetadata(metaRaw))

	if len(bundle.Images) > 0 {
		manifest.FeaturedImage = bundle.Images[0].URL
	} else {
		manifest.FeaturedImage = s.opts.FeaturedImage
	}

	article := &GeneratedArticle{
		Title:                meta.Title,
		Slug:                 meta.Slug,
		MetaDescription:      meta.MetaDescription,
		Excerpt:              meta.Excerpt,
		Content:              content,
		Tags:                 deriveTags(topic, plain),
		EstimatedReadMinutes: readMinutes(words),
		OpenGraph: OpenGraphFields{
			Title:       meta.Title,
			Description: meta.MetaDescription,
			Image:       manifest.FeaturedImage,
			Type:        "article",
			URL:         s.opts.SiteBaseURL + "/article/" + meta.Slug,
		},
		SearchMeta: SearchMetaFields{
			Title:       meta.Title,
			Description: meta.MetaDescription,
			Keywords:    strings.Join(meta.Keywords, ", "),
			Author:      s.opts.AuthorName,
			Robots:      "index, follow",
		},
		EmbeddedMedia: manifest,
		Status:        StatusDraft,
		Provenance: Provenance{
			OriginTopic:         topic,
			GenerationMethod:    s.gen.Model(),
			ContributingSources: append([]string(nil), bundle.Providers...),
		},
	}

	slog.Info("[ContentSynthesizer] Article synthesized",
		slog.String("topic", topic),
		slog.String("slug", article.Slug),
		slog.Int("words", words),
		slog.Int("images", len(manifest.InlineImages)),
		slog.Int("posts", len(manifest.EmbeddedPosts)),
		slog.Int("videos", len(manifest.EmbeddedVideos)))
	return article, nil
}

func bodyTokenBudget(targetWords int) int {
	budget := targetWords * 2
	if budget < 3000 {
		budget = 3000
	}
	if budget > 8192 {
		budget = 8192
	}
	return budget
}

func readMinutes(words int) int {
	m := int(math.Ceil(float64(words) / wordsPerMinute))
	if m < 1 {
		return 1
	}
	return m
}

func buildBodyPrompt(topic string, bundle MediaBundle, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a comprehensive, well-researched article about %q of at least %d words.\n\n", topic, targetWords)
	b.WriteString(`Requirements:
- Output HTML only, using <h2>, <h3>, <p>, <ul>, <li>, <strong> and <em>. No <html>, <head> or <body> wrapper.
- Start with an engaging introduction, cover the key developments, their impact and what comes next.
- Keep a neutral, factual tone and do not invent statistics.
`)

	if len(bundle.Images)+len(bundle.SocialPosts)+len(bundle.Videos) > 0 {
		b.WriteString("- Place each media placeholder below exactly once, on its own line between paragraphs, where it fits the text best.\n\nAvailable media placeholders:\n")
		for i, img := range bundle.Images {
			fmt.Fprintf(&b, "[IMAGE_PLACEHOLDER_%d]: image showing %s\n", i+1, img.AltText)
		}
		for i, p := range bundle.SocialPosts {
			fmt.Fprintf(&b, "[TWEET_PLACEHOLDER_%d]: post by %s: %s\n", i+1, p.AuthorName, oneLine(p.Text))
		}
		for i, v := range bundle.Videos {
			fmt.Fprintf(&b, "[VIDEO_PLACEHOLDER_%d]: video %q\n", i+1, v.Title)
		}
	} else {
		b.WriteString("- Do not include any media placeholders.\n")
	}

	if len(bundle.BackgroundArticles) > 0 {
		b.WriteString("\nRecent coverage to draw on:\n")
		for _, a := range bundle.BackgroundArticles {
			fmt.Fprintf(&b, "- %s (%s): %s\n", a.Title, a.SourceName, oneLine(a.Excerpt))
		}
	}
	return b.String()
}

func buildMetadataPrompt(topic, plainBody string) string {
	excerpt := truncateRunes(oneLine(plainBody), 1500)
	return fmt.Sprintf(`Generate SEO metadata for an article about %q.

Article opening:
%s

Respond with a single JSON object and nothing else:
{
  "title": "SEO title under 60 characters",
  "metaDescription": "compelling description under 160 characters",
  "keywords": ["keyword 1", "keyword 2", "keyword 3"],
  "slug": "url-friendly-slug",
  "excerpt": "two sentence summary"
}`, topic, excerpt)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// embedMedia replaces placeholders with embed markup. The first occurrence of each index is
// embedded and later repeats are dropped; indexes past the bundle's lists stay literal.
// Placeholders are resolved into tokens first, so the unresolved list it returns reflects
// only the model's text and never placeholder-like text inside third-party media.
func embedMedia(topic, body string, bundle MediaBundle) (string, MediaManifest, []string) {
	manifest := MediaManifest{
		InlineImages:   []EmbeddedImage{},
		EmbeddedPosts:  []EmbeddedPost{},
		EmbeddedVideos: []EmbeddedVideo{},
	}
	used := make(map[string]bool)
	var excess, embeds []string
	embed := func(markup string) string {
		embeds = append(embeds, markup)
		return fmt.Sprintf("\x00%d\x00", len(embeds)-1)
	}

	body = strings.ReplaceAll(body, "\x00", "")
	body = wrappedPlaceholder.ReplaceAllString(body, "$1")
	tokenized := placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		m := placeholderPattern.FindStringSubmatch(match)
		kind := m[1]
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return ""
		}
		key := kind + "_" + m[2]

		var available int
		switch kind {
		case "IMAGE":
			available = len(bundle.Images)
		case "TWEET":
			available = len(bundle.SocialPosts)
		case "VIDEO":
			available = len(bundle.Videos)
		}
		if n > available {
			excess = append(excess, match)
			return match
		}
		if used[key] {
			return ""
		}
		used[key] = true

		switch kind {
		case "IMAGE":
			img := bundle.Images[n-1]
			manifest.InlineImages = append(manifest.InlineImages, EmbeddedImage{URL: img.URL, Alt: img.AltText, Caption: img.AltText, Position: n})
			return embed(imageMarkup(img))
		case "TWEET":
			post := bundle.SocialPosts[n-1]
			manifest.EmbeddedPosts = append(manifest.EmbeddedPosts, EmbeddedPost{ID: post.ID, URL: post.Permalink, Position: n})
			return embed(postMarkup(post))
		default:
			video := bundle.Videos[n-1]
			manifest.EmbeddedVideos = append(manifest.EmbeddedVideos, EmbeddedVideo{URL: video.URL, Title: video.Title, Position: n})
			return embed(videoMarkup(video))
		}
	})

	if len(excess) > 0 {
		slog.Warn("[ContentSynthesizer] Model emitted placeholders without matching media",
			slog.String("topic", topic),
			slog.Any("placeholders", excess))
	}

	unresolved := unresolvedPlaceholders(tokenized, bundle)
	content := embedToken.ReplaceAllStringFunc(tokenized, func(tok string) string {
		i, err := strconv.Atoi(strings.Trim(tok, "\x00"))
		if err != nil || i >= len(embeds) {
			return ""
		}
		return embeds[i]
	})
	return content, manifest, unresolved
}

// unresolvedPlaceholders lists placeholders that still reference an available media item.
func unresolvedPlaceholders(content string, bundle MediaBundle) []string {
	var left []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		limit := 0
		switch m[1] {
		case "IMAGE":
			limit = len(bundle.Images)
		case "TWEET":
			limit = len(bundle.SocialPosts)
		case "VIDEO":
			limit = len(bundle.Videos)
		}
		if n <= limit {
			left = append(left, m[0])
		}
	}
	return left
}

func imageMarkup(img MediaImage) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="article-image"><img src="%s" alt="%s" loading="lazy"><figcaption>%s`,
		html.EscapeString(img.URL), html.EscapeString(img.AltText), html.EscapeString(img.AltText))
	if img.Attribution != "" {
		fmt.Fprintf(&b, ` <span class="attribution">%s</span>`, html.EscapeString(img.Attribution))
	}
	b.WriteString(`</figcaption></figure>`)
	return b.String()
}

func postMarkup(p SocialPost) string {
	return fmt.Sprintf(`<blockquote class="twitter-tweet" data-id="%s"><p>%s</p>&mdash; %s <a href="%s">View post</a></blockquote>`,
		html.EscapeString(p.ID), html.EscapeString(p.Text), html.EscapeString(p.AuthorName), html.EscapeString(p.Permalink))
}

func videoMarkup(v Video) string {
	return fmt.Sprintf(`<div class="video-embed"><iframe src="https://www.youtube.com/embed/%s" title="%s" frameborder="0" allowfullscreen></iframe></div>`,
		html.EscapeString(v.ID), html.EscapeString(v.Title))
}

type metadataResult interface{ isMetadataResult() }

type parsedMetadata struct {
	Title           string
	Slug            string
	MetaDescription string
	Keywords        []string
	Excerpt         string
}

type unparseableMetadata struct {
	Raw string
	Err error
}

func (parsedMetadata) isMetadataResult()      {}
func (unparseableMetadata) isMetadataResult() {}

// parseMetadata accepts bare JSON, fenced JSON, or JSON surrounded by prose.
func parseMetadata(raw string) metadataResult {
	cleaned := stripCodeFence(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return unparseableMetadata{Raw: raw, Err: errors.New("no JSON object in response")}
	}

	var fields struct {
		Title           string          `json:"title"`
		MetaDescription string          `json:"metaDescription"`
		Keywords        json.RawMessage `json:"keywords"`
		Slug            string          `json:"slug"`
		Excerpt         string          `json:"excerpt"`
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err != nil {
		return unparseableMetadata{Raw: raw, Err: err}
	}

	return parsedMetadata{
		Title:           oneLine(fields.Title),
		Slug:            strings.TrimSpace(fields.Slug),
		MetaDescription: oneLine(fields.MetaDescription),
		Keywords:        parseKeywords(fields.Keywords),
		Excerpt:         oneLine(fields.Excerpt),
	}
}

func parseKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		list = strings.Split(joined, ",")
	}
	var out []string
	for _, k := range list {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// resolveMetadata never fails: every missing field is derived from the topic.
func resolveMetadata(topic string, r metadataResult) parsedMetadata {
	var meta parsedMetadata
	switch v := r.(type) {
	case parsedMetadata:
		meta = v
	case unparseableMetadata:
		slog.Warn("[ContentSynthesizer] Metadata response unusable, deriving from topic",
			slog.String("topic", topic),
			slog.Any("error", v.Err))
	}

	switch {
	case hasSlugChars(meta.Slug):
		meta.Slug = Slugify(meta.Slug)
	case hasSlugChars(meta.Title):
		meta.Slug = Slugify(meta.Title)
	default:
		meta.Slug = Slugify(topic)
	}
	if meta.Title == "" {
		meta.Title = fmt.Sprintf("Understanding %s: A Comprehensive Guide", topic)
	}
	if meta.MetaDescription == "" {
		meta.MetaDescription = fmt.Sprintf("Explore the latest insights and trends in %s.", topic)
	}
	meta.MetaDescription = truncateRunes(meta.MetaDescription, 160)
	if len(meta.Keywords) == 0 {
		meta.Keywords = []string{topic, "trends", "analysis", "insights"}
	}
	if meta.Excerpt == "" {
		meta.Excerpt = fmt.Sprintf("Discover key insights and analysis about %s.", topic)
	}
	return meta
}

var tagStopwords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "before": true, "being": true,
	"could": true, "does": true, "each": true, "even": true, "from": true, "have": true,
	"into": true, "just": true, "like": true, "long": true, "made": true, "make": true,
	"many": true, "more": true, "most": true, "much": true, "must": true, "only": true,
	"other": true, "over": true, "same": true, "some": true, "such": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "very": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true, "because": true, "between": true, "across": true,
}

// deriveTags combines the topic, its longer words, the generic tags and the body's most
// frequent words, deduplicated case-insensitively.
func deriveTags(topic, plainBody string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] || len(tags) >= maxTags {
			return
		}
		seen[key] = true
		tags = append(tags, t)
	}

	add(topic)
	for _, w := range strings.Fields(topic) {
		if len(w) > 3 {
			add(w)
		}
	}
	for _, g := range genericTags {
		add(g)
	}

	counts := make(map[string]int)
	for _, w := range tagWord.FindAllString(strings.ToLower(plainBody), -1) {
		if !tagStopwords[w] {
			counts[w]++
		}
	}
	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	for i := 0; i < len(ranked) && i < 5; i++ {
		add(ranked[i])
	}
	return tags
}
