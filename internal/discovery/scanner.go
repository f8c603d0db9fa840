// Package discovery sources leads from maps, web search and the national
// company registry. Every scan strategy is independent of the others: each
// debits tenant credits up front, issues vendor calls through the gateway
// broker, and normalizes the vendor payload into Lead records.
package discovery

import (
	"context"

	"github.com/prospeqta/leadgen-cli/pkg/places"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// Broker is the outbound call surface scanners depend on. The gateway
// satisfies it; tests substitute mocks.
type Broker interface {
	PlacesSearch(ctx context.Context, tenantID string, req places.TextSearchRequest, useCache bool) (*places.TextSearchResponse, error)
	WebSearch(ctx context.Context, tenantID string, req websearch.SearchRequest, useCache bool) (*websearch.SearchResponse, error)
}

// CreditGate authorizes metered work before any vendor call is made. A
// returned error aborts the scan with no side effects.
type CreditGate interface {
	UseCredits(ctx context.Context, tenantID string, amount int, source, description string) error
}
