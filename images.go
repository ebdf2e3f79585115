package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const unsplashAPIBase = "https://api.unsplash.com"

// UnsplashClient searches Unsplash photos for article illustrations.
type UnsplashClient struct {
	accessKey string
	baseURL   string
	client    *http.Client
}

func NewUnsplashClient(accessKey string, client *http.Client) *UnsplashClient {
	return &UnsplashClient{accessKey: accessKey, baseURL: unsplashAPIBase, client: client}
}

func (c *UnsplashClient) Name() string { return "unsplash" }

type unsplashSearchResponse struct {
	Results []struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

func (c *UnsplashClient) SearchImages(ctx context.Context, query string, limit int) ([]MediaImage, error) {
	if c.accessKey == "" {
		return nil, fmt.Errorf("unsplash access key not set")
	}
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{
		"query":       {query},
		"per_page":    {strconv.Itoa(limit)},
		"orientation": {"landscape"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching unsplash: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash API status %d", resp.StatusCode)
	}

	var body unsplashSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding unsplash response: %w", err)
	}

	var images []MediaImage
	for _, r := range body.Results {
		if r.URLs.Regular == "" {
			continue
		}
		alt := strings.TrimSpace(r.AltDescription)
		if alt == "" {
			alt = strings.TrimSpace(r.Description)
		}
		if alt == "" {
			alt = query
		}
		img := MediaImage{URL: r.URLs.Regular, AltText: alt, SourceName: "Unsplash"}
		if r.User.Name != "" {
			img.Attribution = fmt.Sprintf("Photo by %s on Unsplash", r.User.Name)
		}
		images = append(images, img)
		if len(images) >= limit {
			break
		}
	}
	return images, nil
}
