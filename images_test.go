package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsplashSearchImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/photos", r.URL.Path)
		assert.Equal(t, "Client-ID key", r.Header.Get("Authorization"))
		assert.Equal(t, "landscape", r.URL.Query().Get("orientation"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`{"results":[
			{"id":"a","alt_description":"a server rack","urls":{"regular":"https://img/a.jpg"},"user":{"name":"Jane Doe"}},
			{"id":"b","description":"","urls":{"regular":"https://img/b.jpg"},"user":{"name":""}},
			{"id":"c","urls":{"regular":""}}
		]}`))
	}))
	defer srv.Close()

	c := NewUnsplashClient("key", srv.Client())
	c.baseURL = srv.URL

	images, err := c.SearchImages(context.Background(), "data centers", 5)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, MediaImage{
		URL:         "https://img/a.jpg",
		AltText:     "a server rack",
		SourceName:  "Unsplash",
		Attribution: "Photo by Jane Doe on Unsplash",
	}, images[0])
	assert.Equal(t, "data centers", images[1].AltText)
	assert.Empty(t, images[1].Attribution)
}

func TestUnsplashRequiresKey(t *testing.T) {
	_, err := NewUnsplashClient("", http.DefaultClient).SearchImages(context.Background(), "x", 5)
	assert.Error(t, err)
}
