package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// TrendAdapter is one trend-discovery source.
type TrendAdapter interface {
	Name() string
	Source() TrendSource
	FetchTrends(ctx context.Context, region string) ([]TrendingTopic, error)
}

// callTimeouter is implemented by adapters whose calls need longer than the shared
// adapter timeout.
type callTimeouter interface {
	CallTimeout() time.Duration
}

type guardedTrendAdapter struct {
	adapter TrendAdapter
	guard   *adapterGuard
}

// TopicAggregator merges, deduplicates and ranks trending topics from every adapter.
type TopicAggregator struct {
	adapters []guardedTrendAdapter
}

// NewTopicAggregator wraps every adapter in its own guard. Adapter order does not
// affect ranking; source priority does.
func NewTopicAggregator(settings guardSettings, adapters ...TrendAdapter) *TopicAggregator {
	a := &TopicAggregator{}
	for _, ad := range adapters {
		if ad == nil {
			continue
		}
		s := settings
		if ct, ok := ad.(callTimeouter); ok && ct.CallTimeout() > s.Timeout {
			s.Timeout = ct.CallTimeout()
		}
		a.adapters = append(a.adapters, guardedTrendAdapter{
			adapter: ad,
			guard:   newAdapterGuard("trends:"+ad.Name(), s),
		})
	}
	sort.SliceStable(a.adapters, func(i, j int) bool {
		return a.adapters[i].adapter.Source() < a.adapters[j].adapter.Source()
	})
	return a
}

// Aggregate queries every adapter for every region, merges the results and returns at
// most limit topics ordered by volume. A failed adapter contributes nothing; the result
// is empty only when every adapter failed or none returned anything.
func (a *TopicAggregator) Aggregate(ctx context.Context, regions []string, limit int) []TrendingTopic {
	if len(regions) == 0 {
		regions = []string{"US"}
	}
	regions = uniqueRegions(regions)

	// One slot per (adapter, region) keeps merge order deterministic while the
	// fetches themselves run concurrently.
	slots := make([][]TrendingTopic, len(a.adapters)*len(regions))
	var g errgroup.Group
	for i, ga := range a.adapters {
		for j, region := range regions {
			slot := i*len(regions) + j
			ga, region := ga, region
			g.Go(func() error {
				topics := guardedCall(ctx, ga.guard, region, func(ctx context.Context) ([]TrendingTopic, error) {
					return ga.adapter.FetchTrends(ctx, region)
				})
				for k := range topics {
					topics[k].Source = ga.adapter.Source()
					if topics[k].Region == "" {
						topics[k].Region = region
					}
				}
				slots[slot] = topics
				return nil
			})
		}
	}
	_ = g.Wait()

	var all []TrendingTopic
	for _, s := range slots {
		all = append(all, s...)
	}
	ranked := rankTopics(all)
	slog.Info("[TopicAggregator] Aggregated trending topics",
		slog.Int("raw", len(all)),
		slog.Int("unique", len(ranked)),
		slog.Any("regions", regions))

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// rankTopics deduplicates on normalized keyword and sorts the survivors. A duplicate keeps
// the first-seen entry's keyword, category and related keywords but takes the higher volume.
func rankTopics(topics []TrendingTopic) []TrendingTopic {
	index := make(map[string]int)
	var merged []TrendingTopic
	for _, t := range topics {
		key := normalizeKeyword(t.Keyword)
		if key == "" {
			continue
		}
		if t.Volume < 0 {
			t.Volume = 0
		}
		if i, ok := index[key]; ok {
			if t.Volume > merged[i].Volume {
				merged[i].Volume = t.Volume
			}
			merged[i].SeenIn = appendSource(merged[i].SeenIn, t.Source)
			continue
		}
		t.Keyword = strings.TrimSpace(t.Keyword)
		t.SeenIn = appendSource(nil, t.Source)
		index[key] = len(merged)
		merged = append(merged, t)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return normalizeKeyword(a.Keyword) < normalizeKeyword(b.Keyword)
	})
	return merged
}

func appendSource(sources []TrendSource, s TrendSource) []TrendSource {
	for _, existing := range sources {
		if existing == s {
			return sources
		}
	}
	return append(sources, s)
}

func uniqueRegions(regions []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range regions {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	if len(out) == 0 {
		return []string{"US"}
	}
	return out
}

// FormatTrendingTopicsJSON formats the trending topics as a JSON object with metadata
func FormatTrendingTopicsJSON(topics []TrendingTopic) (string, error) {
	type TrendingData struct {
		Timestamp string          `json:"timestamp"`
		Count     int             `json:"count"`
		Topics    []TrendingTopic `json:"topics"`
	}

	data := TrendingData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Count:     len(topics),
		Topics:    topics,
	}

	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshaling to JSON: %w", err)
	}

	return string(jsonBytes), nil
}
