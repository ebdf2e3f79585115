package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" ai ")
	assert.True(t, ok)
	assert.Equal(t, CategoryAI, c)
	assert.Equal(t, "AI", c.String())

	c, ok = ParseCategory("sustainability")
	assert.True(t, ok)
	assert.Equal(t, CategorySustainability, c)

	c, ok = ParseCategory("Cooking")
	assert.False(t, ok)
	assert.Equal(t, CategoryUnknown, c)
}

func TestEveryCategoryHasTopics(t *testing.T) {
	for c := CategoryTechnology; c <= CategoryGaming; c++ {
		assert.NotEmpty(t, c.Topics(), c.String())
	}
}

func TestUnknownCategoryFallsBackToRandomPool(t *testing.T) {
	assert.Equal(t, randomTopicPool, TopicsFor("Cooking"))
	assert.Equal(t, categoryTopics[CategoryGaming], TopicsFor("GAMING"))
}

func TestCatalogTrends(t *testing.T) {
	topics, err := CatalogTrends{}.FetchTrends(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, topics, len(randomTopicPool))
	assert.Equal(t, "AI Code Generation", topics[0].Keyword)
	assert.Equal(t, "AI", topics[0].Category)
	for _, topic := range topics {
		assert.Zero(t, topic.Volume)
	}
	assert.Equal(t, SourceCatalog, topics[0].Source)
}
