package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Steam storefront
	DefaultBaseURL = "https://store.steampowered.com"
)

// ErrNoResults is returned when a search matched nothing with artwork
var ErrNoResults = errors.New("steam: no results")

// SearchItem is one entry of a store search response
type SearchItem struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          int    `json:"id"`
	HeaderImage string `json:"header_image"`
	LargeImage  string `json:"large_image"`
	SmallImage  string `json:"small_image"`
	TinyImage   string `json:"tiny_image"`
}

// Image returns the best artwork the item carries
func (i SearchItem) Image() string {
	for _, candidate := range []string{i.HeaderImage, i.LargeImage, i.SmallImage, i.TinyImage} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

type searchResponse struct {
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
}

// Client is a Steam store search client with rate limiting
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Steam store client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// The storefront tolerates roughly 200 requests per 5 minutes
		limiter: rate.NewLimiter(rate.Every(1500*time.Millisecond), 5),
	}
}

// doRequest performs an HTTP request with rate limiting
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, fmt.Errorf("rate limited by steam")
	}

	return resp, nil
}

// get performs a GET request and decodes the JSON response
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Search queries the store for term
func (c *Client) Search(ctx context.Context, term string) ([]SearchItem, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("l", "english")
	q.Set("cc", "us")

	var resp searchResponse
	if err := c.get(ctx, c.baseURL+"/api/storesearch/?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FindImage returns artwork for the first search hit that has any
func (c *Client) FindImage(ctx context.Context, name string) (string, error) {
	items, err := c.Search(ctx, name)
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if img := item.Image(); img != "" {
			return img, nil
		}
	}
	return "", ErrNoResults
}
