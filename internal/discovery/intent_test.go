package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

func TestIntentScan(t *testing.T) {
	broker := &mockBroker{searchResps: []*websearch.SearchResponse{{
		Organic: []websearch.OrganicResult{
			{Title: "Alguém indica personal trainer em Curitiba?", Link: "https://reddit.com/r/curitiba/x", Snippet: "procurando academia boa"},
		},
	}}}
	gate := &mockGate{}
	scanner := NewIntentScanner(gate, broker)

	leads, err := scanner.Scan(context.Background(), "tenant-1", "personal trainer", 1)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, defaultIntentScore, leads[0].Details.Value("intent_score"))
	assert.Equal(t, "reddit.com", leads[0].Details.Value("intent_source"))
	assert.Equal(t, "https://reddit.com/r/curitiba/x", leads[0].SocialLinks["source"])
	assert.Equal(t, []int{billing.CostIntentScan}, gate.amounts)
}

func TestIntentScanVendorError(t *testing.T) {
	broker := &mockBroker{searchErr: errVendorDown}
	scanner := NewIntentScanner(&mockGate{}, broker)

	_, err := scanner.Scan(context.Background(), "tenant-1", "personal trainer", 1)
	require.Error(t, err)
}
