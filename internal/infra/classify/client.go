// Package classify implements the classification-service collaborator
// client. Responses are strictly parsed: a payload missing required fields
// is rejected as a transient error rather than crashing or mis-scoring.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// Client talks to the classification service API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a new classification client.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
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

type classifyRequest struct {
	PostID   string `json:"post_id"`
	URL      string `json:"url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// Required fields are pointers so an absent field is distinguishable from a
// zero value.
type classifyResponse struct {
	IsMatch    *bool          `json:"is_match"`
	Confidence *float64       `json:"confidence"`
	Category   string         `json:"category"`
	Details    map[string]any `json:"details"`
}

// Classify submits a post for classification and returns the verdict.
func (c *Client) Classify(ctx context.Context, post domain.Post) (*domain.Verdict, error) {
	reqBody := classifyRequest{
		PostID:   post.ID,
		URL:      post.URL,
		Caption:  post.Caption,
		MediaURL: post.MediaURL,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: classifier returned 429, retry after: %s",
			domain.ErrRateLimited, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: classifier returned status %d",
			domain.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrServiceUnavailable, err)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedVerdict, err)
	}
	if parsed.IsMatch == nil || parsed.Confidence == nil {
		return nil, fmt.Errorf("%w: missing is_match or confidence", domain.ErrMalformedVerdict)
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %v out of [0,100]",
			domain.ErrMalformedVerdict, *parsed.Confidence)
	}

	return &domain.Verdict{
		IsMatch:    *parsed.IsMatch,
		Category:   parsed.Category,
		Details:    parsed.Details,
		Confidence: *parsed.Confidence,
	}, nil
}
