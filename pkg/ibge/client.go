// Package ibge lists Brazilian municipalities from the IBGE localities API.
// The dashboard's location picker uses it; the API is public, no key.
package ibge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://servicodados.ibge.gov.br/api/v1"

// Client lists municipalities by state.
type Client interface {
	Municipalities(ctx context.Context, uf string) ([]Municipality, error)
}

// Municipality is one city record.
type Municipality struct {
	ID   int    `json:"id"`
	Name string `json:"nome"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an IBGE localities client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Municipalities(ctx context.Context, uf string) ([]Municipality, error) {
	if uf == "" {
		return nil, eris.New("ibge: uf is required")
	}

	url := fmt.Sprintf("%s/localidades/estados/%s/municipios", c.baseURL, uf)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ibge: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ibge: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ibge: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ibge: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out []Municipality
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "ibge: unmarshal response")
	}
	return out, nil
}
