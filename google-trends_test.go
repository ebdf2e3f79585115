package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trendsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:atom="http://www.w3.org/2005/Atom" xmlns:ht="https://trends.google.com/trending/rss" version="2.0">
  <channel>
    <title>Daily Search Trends</title>
    <item>
      <title>AI Code Generation</title>
      <ht:approx_traffic>200K+</ht:approx_traffic>
      <ht:news_item>
        <ht:news_item_title>Copilot ships agent mode</ht:news_item_title>
        <ht:news_item_source>The Verge</ht:news_item_source>
      </ht:news_item>
    </item>
    <item>
      <title>Quantum Computing</title>
      <ht:approx_traffic>5,000+</ht:approx_traffic>
    </item>
    <item>
      <title>  </title>
      <ht:approx_traffic>1M+</ht:approx_traffic>
    </item>
  </channel>
</rss>`

func TestGoogleTrendsFeedFetch(t *testing.T) {
	var gotGeo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGeo = r.URL.Query().Get("geo")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(trendsRSS))
	}))
	defer srv.Close()

	feed := NewGoogleTrendsFeed(srv.Client(), 10)
	feed.baseURL = srv.URL

	topics, err := feed.FetchTrends(context.Background(), "GB")
	require.NoError(t, err)
	assert.Equal(t, "GB", gotGeo)
	require.Len(t, topics, 2)

	assert.Equal(t, "AI Code Generation", topics[0].Keyword)
	assert.Equal(t, int64(200000), topics[0].Volume)
	assert.Equal(t, []string{"Copilot ships agent mode"}, topics[0].RelatedKeywords)
	assert.Equal(t, SourceGoogle, topics[0].Source)
	assert.Equal(t, "GB", topics[0].Region)
	assert.Equal(t, int64(5000), topics[1].Volume)
}

func TestGoogleTrendsFeedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	feed := NewGoogleTrendsFeed(srv.Client(), 10)
	feed.baseURL = srv.URL

	_, err := feed.FetchTrends(context.Background(), "US")
	assert.Error(t, err)
}

func TestParseVolume(t *testing.T) {
	tests := map[string]int64{
		"200K+":   200000,
		"1,000+":  1000,
		"2M+":     2000000,
		"2.5m":    2500000,
		"50k":     50000,
		"":        0,
		"n/a":     0,
		"12000":   12000,
		"1B+ hits": 1000000000,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseVolume(in), "parseVolume(%q)", in)
	}
}
