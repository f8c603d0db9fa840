package discovery

import (
	"context"
	"errors"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/pkg/places"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// mockGate authorizes or denies credit use and records what was asked.
type mockGate struct {
	deny    bool
	amounts []int
	sources []string
}

func (m *mockGate) UseCredits(_ context.Context, _ string, amount int, source, _ string) error {
	m.amounts = append(m.amounts, amount)
	m.sources = append(m.sources, source)
	if m.deny {
		return billing.ErrInsufficientCredits
	}
	return nil
}

// mockBroker serves canned vendor responses and records queries.
type mockBroker struct {
	placesResp  *places.TextSearchResponse
	placesErr   error
	placesCalls int

	searchResps []*websearch.SearchResponse
	searchErr   error
	queries     []string
}

func (m *mockBroker) PlacesSearch(_ context.Context, _ string, _ places.TextSearchRequest, _ bool) (*places.TextSearchResponse, error) {
	m.placesCalls++
	if m.placesErr != nil {
		return nil, m.placesErr
	}
	if m.placesResp == nil {
		return &places.TextSearchResponse{}, nil
	}
	return m.placesResp, nil
}

func (m *mockBroker) WebSearch(_ context.Context, _ string, req websearch.SearchRequest, _ bool) (*websearch.SearchResponse, error) {
	m.queries = append(m.queries, req.Query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.searchResps) == 0 {
		return &websearch.SearchResponse{}, nil
	}
	resp := m.searchResps[0]
	if len(m.searchResps) > 1 {
		m.searchResps = m.searchResps[1:]
	}
	return resp, nil
}

var errVendorDown = errors.New("vendor down")
