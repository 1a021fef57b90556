/**
 * @description
 * This package provides a client for interacting with the Stripe API. It
 * encapsulates the logic for making authenticated form-encoded HTTP requests
 * to Stripe's endpoints, handling request body construction, and parsing
 * responses. Only the small surface the finance-service needs is covered:
 * checkout sessions, subscription lookups, and webhook signature checks.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, strings, time: Standard Go libraries.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// ErrGatewayUnavailable is returned when Stripe cannot be reached or answers
// with a server error. Callers should treat the operation as retryable.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutMode selects how a checkout session collects payment.
type CheckoutMode string

const (
	ModePayment      CheckoutMode = "payment"
	ModeSubscription CheckoutMode = "subscription"
)

// CheckoutParams describes the session to create. Either PriceID or the
// ad-hoc Amount/Currency/ProductName triple must be set.
type CheckoutParams struct {
	Mode          CheckoutMode
	PriceID       string
	Amount        int64 // in cents, for ad-hoc payment line items
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the subset of Stripe's session object this service reads.
type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Customer        string            `json:"customer"`
	PaymentIntent   string            `json:"payment_intent"`
	Subscription    string            `json:"subscription"`
	Metadata        map[string]string `json:"metadata"`
}

// SubscriptionInfo is the subset of Stripe's subscription object this service reads.
type SubscriptionInfo struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"` // unix seconds
	CurrentPeriodEnd   int64  `json:"current_period_end"`   // unix seconds
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// ErrorResponse represents an error from the Stripe API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("stripe api error: %s - %s", e.Err.Type, e.Err.Message)
	}
	return "unknown stripe api error"
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", string(params.Mode))
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	if params.PriceID != "" {
		form.Set("line_items[0][price]", params.PriceID)
		form.Set("line_items[0][quantity]", "1")
	} else {
		currency := params.Currency
		if currency == "" {
			currency = "eur"
		}
		form.Set("line_items[0][price_data][currency]", currency)
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.Amount, 10))
		form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
		form.Set("line_items[0][quantity]", "1")
	}

	for key, value := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
		// Session metadata is not copied onto the payment intent automatically.
		if params.Mode == ModePayment {
			form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", key), value)
		}
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSubscription fetches the current state of a gateway subscription.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error) {
	var info SubscriptionInfo
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Err.Message == "" {
			return fmt.Errorf("stripe api error: status %d", resp.StatusCode)
		}
		return &errResp
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode stripe response: %w", err)
		}
	}
	return nil
}
