package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider is the surface the provisioner needs from the payment processor.
// Checkout payloads arrive stale or incomplete, so sessions and customers are
// re-fetched before acting on them.
type Provider interface {
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
}

// Client talks to the payment processor's REST API.
type Client struct {
	APIBaseURL string
	SecretKey  string

	HTTPClient *http.Client
}

// CheckoutSession is the re-fetched checkout payload.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// Customer is the subset of the customer object the service reads.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Subscription is the subset of the subscription object the service reads.
type Subscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// NewClient builds a provider client. baseURL carries no trailing slash.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(baseURL, "/"),
		SecretKey:  secretKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.getJSON(ctx, "/checkout/sessions/"+strings.TrimSpace(id), &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("checkout session response missing id")
	}
	return &out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.getJSON(ctx, "/customers/"+strings.TrimSpace(id), &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("customer response missing id")
	}
	return &out, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	if err := c.getJSON(ctx, "/subscriptions/"+strings.TrimSpace(id), &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("subscription response missing id")
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("payment secret key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment api request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}
