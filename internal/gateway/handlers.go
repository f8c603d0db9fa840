package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/prospeqta/leadgen-cli/pkg/ai"
	"github.com/prospeqta/leadgen-cli/pkg/places"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// PlacesHandler routes APIPlaces calls to the places vendor.
type PlacesHandler struct {
	BaseURL string
	HTTP    *http.Client
}

func (h *PlacesHandler) Call(ctx context.Context, apiKey, endpoint string, payload json.RawMessage) (json.RawMessage, error) {
	if endpoint != "searchText" {
		return nil, eris.Errorf("places handler: unsupported endpoint %q", endpoint)
	}
	var req places.TextSearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "places handler: decode payload")
	}

	opts := []places.Option{}
	if h.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(h.BaseURL))
	}
	if h.HTTP != nil {
		opts = append(opts, places.WithHTTPClient(h.HTTP))
	}
	resp, err := places.NewClient(apiKey, opts...).TextSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// SearchHandler routes APISearch calls to the web-search vendor.
type SearchHandler struct {
	BaseURL string
	HTTP    *http.Client
}

func (h *SearchHandler) Call(ctx context.Context, apiKey, endpoint string, payload json.RawMessage) (json.RawMessage, error) {
	if endpoint != "search" {
		return nil, eris.Errorf("search handler: unsupported endpoint %q", endpoint)
	}
	var req websearch.SearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "search handler: decode payload")
	}

	opts := []websearch.Option{}
	if h.BaseURL != "" {
		opts = append(opts, websearch.WithBaseURL(h.BaseURL))
	}
	if h.HTTP != nil {
		opts = append(opts, websearch.WithHTTPClient(h.HTTP))
	}
	resp, err := websearch.NewClient(apiKey, opts...).Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// AIHandler routes APIAI calls to the generative-AI vendor.
type AIHandler struct {
	Model     string
	MaxTokens int64

	// NewClient is injectable for tests; defaults to the SDK-backed client.
	NewClient func(apiKey string) ai.Client
}

// AIPayload is the wire shape of an APIAI request through the gateway.
type AIPayload struct {
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
}

func (h *AIHandler) Call(ctx context.Context, apiKey, endpoint string, payload json.RawMessage) (json.RawMessage, error) {
	if endpoint != "complete" {
		return nil, eris.Errorf("ai handler: unsupported endpoint %q", endpoint)
	}
	var req AIPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, eris.Wrap(err, "ai handler: decode payload")
	}

	newClient := h.NewClient
	if newClient == nil {
		newClient = func(key string) ai.Client { return ai.NewClient(key) }
	}

	completion, err := newClient(apiKey).Complete(ctx, ai.Request{
		Model:     h.Model,
		MaxTokens: h.MaxTokens,
		System:    req.System,
		Prompt:    req.Prompt,
	})
	if err != nil {
		return nil, err
	}
	completion.Usage.LogCost(h.Model, endpoint)
	return json.Marshal(completion)
}
