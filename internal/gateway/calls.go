package gateway

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/prospeqta/leadgen-cli/pkg/ai"
	"github.com/prospeqta/leadgen-cli/pkg/places"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// PlacesSearch brokers a places text search for a tenant.
func (g *Gateway) PlacesSearch(ctx context.Context, tenantID string, req places.TextSearchRequest, useCache bool) (*places.TextSearchResponse, error) {
	raw, err := g.Call(ctx, Request{
		API:      APIPlaces,
		Endpoint: "searchText",
		Payload:  req,
		TenantID: tenantID,
		UseCache: useCache,
	})
	if err != nil {
		return nil, err
	}
	var resp places.TextSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(err, "gateway: decode places response")
	}
	return &resp, nil
}

// WebSearch brokers an organic web search for a tenant.
func (g *Gateway) WebSearch(ctx context.Context, tenantID string, req websearch.SearchRequest, useCache bool) (*websearch.SearchResponse, error) {
	raw, err := g.Call(ctx, Request{
		API:      APISearch,
		Endpoint: "search",
		Payload:  req,
		TenantID: tenantID,
		UseCache: useCache,
	})
	if err != nil {
		return nil, err
	}
	var resp websearch.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(err, "gateway: decode search response")
	}
	return &resp, nil
}

// AIComplete brokers a generative-AI completion for a tenant. AI calls are
// never cached by default: prompts embed lead-specific context.
func (g *Gateway) AIComplete(ctx context.Context, tenantID string, p AIPayload, useCache bool) (*ai.Completion, error) {
	raw, err := g.Call(ctx, Request{
		API:      APIAI,
		Endpoint: "complete",
		Payload:  p,
		TenantID: tenantID,
		UseCache: useCache,
	})
	if err != nil {
		return nil, err
	}
	var resp ai.Completion
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(err, "gateway: decode ai response")
	}
	return &resp, nil
}
