/**
 * @description
 * This package provides a client for communicating with the listing-service.
 * It encapsulates the logic for making internal API calls to the listing
 * service, specifically for activating a listing once its payment completed.
 */
package listingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the listing service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new listing service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ActivateListingRequest defines the request payload for activating a listing.
type ActivateListingRequest struct {
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
}

// ActivateListing calls the listing-service to publish a listing whose
// payment has completed.
func (c *Client) ActivateListing(ctx context.Context, listingID, userID string) error {
	if c.baseURL == "" {
		return fmt.Errorf("listing service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/listings/activate", c.baseURL)

	payload := ActivateListingRequest{
		ListingID: listingID,
		UserID:    userID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to listing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("listing service returned error status %d", resp.StatusCode)
	}

	return nil
}
