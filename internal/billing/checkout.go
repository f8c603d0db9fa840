package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/prospeqta/leadgen-cli/internal/config"
)

// Session is a hosted checkout session handle returned to the client.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Checkout resolves product ids to current prices and opens hosted checkout
// sessions with the payment processor.
type Checkout struct {
	baseURL  string
	key      string
	products map[string]config.Product
	http     *http.Client
}

// NewCheckout creates a checkout service from billing configuration.
func NewCheckout(cfg config.BillingConfig, opts ...CheckoutOption) *Checkout {
	c := &Checkout{
		baseURL:  cfg.CheckoutBaseURL,
		key:      cfg.CheckoutKey,
		products: cfg.Products,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CheckoutOption configures the checkout service.
type CheckoutOption func(*Checkout)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) CheckoutOption {
	return func(c *Checkout) {
		c.http = hc
	}
}

// CreateSession resolves productID to its current price server-side and
// opens a hosted checkout session for the tenant. The client only ever
// supplies the product id, never the price.
func (c *Checkout) CreateSession(ctx context.Context, tenantID, productID string) (*Session, error) {
	product, ok := c.products[productID]
	if !ok {
		return nil, eris.Errorf("billing: unknown product %q", productID)
	}
	if c.baseURL == "" || c.key == "" {
		return nil, eris.New("billing: checkout processor not configured")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", tenantID)
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][product_data][name]", product.Name)
	// Rounded, not truncated: 19.99*100 is 1998.9999... in float64.
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(int(math.Round(product.PriceUSD*100))))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[product_id]", productID)
	form.Set("metadata[credits]", strconv.Itoa(product.Credits))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "billing: create checkout request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "billing: call checkout processor")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "billing: read checkout response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("billing: checkout status %d: %s", resp.StatusCode, string(body))
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, eris.Wrap(err, "billing: decode checkout session")
	}
	return &session, nil
}
