package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entitlement is what the entitlement service grants a user. The core only
// enforces the numeric limits; it never computes entitlement itself.
type Entitlement struct {
	CanDeleteForEveryone bool  `json:"can_delete_for_everyone"`
	MaxVideoBytes        int64 `json:"max_video_bytes"`
}

// EntitlementClient fetches a user's entitlements.
type EntitlementClient interface {
	GetEntitlement(ctx context.Context, userID int) (Entitlement, error)
}

// HTTPEntitlementClient calls the entitlement service over HTTP.
type HTTPEntitlementClient struct {
	baseURL string
	client  *http.Client
}

// NewEntitlementClient constructs the wrapper.
func NewEntitlementClient(baseURL string) *HTTPEntitlementClient {
	return &HTTPEntitlementClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// GetEntitlement returns the user's entitlements.
func (c *HTTPEntitlementClient) GetEntitlement(ctx context.Context, userID int) (Entitlement, error) {
	url := fmt.Sprintf("%s/internal/users/%d/entitlements", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Entitlement{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Entitlement{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Entitlement{}, fmt.Errorf("entitlement service returned %d", resp.StatusCode)
	}

	var entitlement Entitlement
	if err := json.NewDecoder(resp.Body).Decode(&entitlement); err != nil {
		return Entitlement{}, err
	}
	return entitlement, nil
}
