package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrContextNotFound = errors.New("context not found")

// ContentClient resolves a content context (a post) to its owning user.
type ContentClient interface {
	ResolveContextOwner(ctx context.Context, contextID int) (int, error)
}

// HTTPContentClient calls the content service over HTTP.
type HTTPContentClient struct {
	baseURL string
	client  *http.Client
}

// NewContentClient constructs the wrapper.
func NewContentClient(baseURL string) *HTTPContentClient {
	return &HTTPContentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// ResolveContextOwner returns the author id for a post.
func (c *HTTPContentClient) ResolveContextOwner(ctx context.Context, contextID int) (int, error) {
	url := fmt.Sprintf("%s/internal/posts/%d/owner", c.baseURL, contextID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrContextNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("content service returned %d", resp.StatusCode)
	}

	var body struct {
		OwnerID int `json:"owner_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.OwnerID == 0 {
		return 0, ErrContextNotFound
	}
	return body.OwnerID, nil
}
