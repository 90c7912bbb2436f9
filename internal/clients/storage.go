package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// StorageClient stores a binary and returns its URL. Messages persist only
// the returned reference, so a storage failure must abort message creation.
type StorageClient interface {
	StoreBinary(ctx context.Context, data []byte, bucket string) (string, error)
}

// HTTPStorageClient calls the storage service over HTTP.
type HTTPStorageClient struct {
	baseURL string
	client  *http.Client
}

// NewStorageClient constructs the wrapper.
func NewStorageClient(baseURL string) *HTTPStorageClient {
	return &HTTPStorageClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StoreBinary uploads the payload into the bucket and returns the blob URL.
func (c *HTTPStorageClient) StoreBinary(ctx context.Context, data []byte, bucket string) (string, error) {
	endpoint := fmt.Sprintf("%s/internal/blobs?bucket=%s", c.baseURL, url.QueryEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("storage service returned %d", resp.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", fmt.Errorf("storage service returned empty url")
	}
	return body.URL, nil
}
