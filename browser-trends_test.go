package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendRow(keyword, volume, status string, related ...string) string {
	var buttons strings.Builder
	for _, r := range related {
		buttons.WriteString("<button><span>i</span><span>x</span><span>y</span><span>" + r + "</span></button>")
	}
	return "<tr><td></td><td>" +
		"<div>" + keyword + "</div>" +
		"<div><div><div>" + volume + "</div></div><div><span>search</span><div>" + status + "</div></div></div>" +
		"</td><td></td><td></td><td>" + buttons.String() + "</td></tr>"
}

func trendsDocument(t *testing.T, rows ...string) *goquery.Document {
	t.Helper()
	page := "<html><body><table>" +
		"<tbody><tr><td>Trends</td></tr></tbody>" +
		"<tbody>" + strings.Join(rows, "") + "<tr><td>spacer</td></tr></tbody>" +
		"</table></body></html>"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestParseTrendsTable(t *testing.T) {
	doc := trendsDocument(t,
		trendRow("Storm Warning", "200K+", "Active", "hurricane", "flood watch"),
		trendRow("Old News", "50K+", "Lasted 5 hrs"),
		trendRow("Local Election", "2K+", "Active"),
	)

	got := parseTrendsTable(doc, 10)

	require.Len(t, got, 2)
	assert.Equal(t, "Storm Warning", got[0].Keyword)
	assert.Equal(t, int64(200000), got[0].Volume)
	assert.Equal(t, []string{"hurricane", "flood watch"}, got[0].RelatedKeywords)
	assert.Equal(t, SourceGoogle, got[0].Source)
	assert.Equal(t, "Local Election", got[1].Keyword)
	assert.Empty(t, got[1].RelatedKeywords)
}

func TestParseTrendsTableStopsAtMaxItems(t *testing.T) {
	doc := trendsDocument(t,
		trendRow("One", "1K+", "Active"),
		trendRow("Two", "1K+", "Active"),
		trendRow("Three", "1K+", "Active"),
	)
	assert.Equal(t, []string{"One", "Two"}, keywordsOf(parseTrendsTable(doc, 2)))
}

func TestGotoTimeoutFitsDeadline(t *testing.T) {
	now := time.Now()

	assert.Equal(t, maxGotoTimeout, gotoTimeout(context.Background(), now))

	ctx, cancel := context.WithDeadline(context.Background(), now.Add(90*time.Second))
	defer cancel()
	assert.Equal(t, maxGotoTimeout, gotoTimeout(ctx, now))

	ctx, cancel = context.WithDeadline(context.Background(), now.Add(13*time.Second))
	defer cancel()
	assert.Equal(t, 10*time.Second, gotoTimeout(ctx, now))

	ctx, cancel = context.WithDeadline(context.Background(), now.Add(time.Second))
	defer cancel()
	assert.Equal(t, time.Second, gotoTimeout(ctx, now))
}

func TestBrowserTrendsCancelledBeforeLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBrowserTrends(nil, 5, 0).FetchTrends(ctx, "US")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBrowserTrendsBudget(t *testing.T) {
	assert.Equal(t, defaultBrowserBudget, NewBrowserTrends(nil, 0, 0).CallTimeout())
	assert.Equal(t, 2*time.Minute, NewBrowserTrends(nil, 0, 2*time.Minute).CallTimeout())
}
