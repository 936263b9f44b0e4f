// Package source implements the item-source collaborator client: recent
// posts and followings for an account, JSON over HTTP.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// Client talks to the item source API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new item source client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type postsResponse struct {
	Posts []postPayload `json:"posts"`
}

type postPayload struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Caption     string     `json:"caption"`
	MediaURL    string     `json:"media_url"`
	PublishedAt *time.Time `json:"published_at"`
}

// RecentPosts fetches up to max recent posts for an account handle.
func (c *Client) RecentPosts(
	ctx context.Context,
	handle string,
	max int,
) ([]domain.Post, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/posts?limit=%s",
		c.baseURL, url.PathEscape(handle), strconv.Itoa(max))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp postsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode posts: %v", domain.ErrSourceUnavailable, err)
	}

	posts := make([]domain.Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		posts = append(posts, domain.Post{
			ID:          p.ID,
			Account:     handle,
			URL:         p.URL,
			Caption:     p.Caption,
			MediaURL:    p.MediaURL,
			PublishedAt: p.PublishedAt,
		})
	}
	return posts, nil
}

type followingsResponse struct {
	Followings []string `json:"followings"`
}

// Followings fetches the accounts an account currently follows.
func (c *Client) Followings(ctx context.Context, handle string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/followings", c.baseURL, url.PathEscape(handle))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp followingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode followings: %v", domain.ErrSourceUnavailable, err)
	}
	return resp.Followings, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: source returned 429, retry after: %s",
			domain.ErrRateLimited, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: source returned status %d",
			domain.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}
	return body, nil
}
