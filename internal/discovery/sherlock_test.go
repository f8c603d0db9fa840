package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

func TestCompetitorScan(t *testing.T) {
	broker := &mockBroker{searchResps: []*websearch.SearchResponse{{
		Organic: []websearch.OrganicResult{
			{Title: `Maria Silva (@mariasilva) on Instagram: "péssimo atendimento"`, Link: "https://www.instagram.com/p/abc"},
			{Title: "João Souza - não recomendo essa academia", Link: "https://facebook.com/joao/posts/1"},
			{Title: "Cobrança indevida após cancelamento - Reclame Aqui", Link: "https://reclameaqui.com.br/power-gym/x"},
			{Title: `Power Gym (@powergym) on Instagram: "promoção"`, Link: "https://instagram.com/p/self"},
		},
	}}}
	gate := &mockGate{}
	scanner := NewCompetitorScanner(gate, broker)

	leads, err := scanner.Scan(context.Background(), "tenant-1", "@powergym", 1)
	require.NoError(t, err)

	names := make([]string, 0, len(leads))
	for _, l := range leads {
		names = append(names, l.Name)
	}
	assert.Contains(t, names, "Maria Silva")
	assert.Contains(t, names, "João Souza")
	assert.Contains(t, names, "Cobrança indevida após cancelamento")
	assert.NotContains(t, names, "Power Gym", "the competitor's own posts are filtered out")

	assert.Equal(t, []int{billing.CostCompetitorScan}, gate.amounts)
	require.Len(t, broker.queries, 1)
	assert.Contains(t, broker.queries[0], "powergym")
}

func TestCompetitorScanDorkRotation(t *testing.T) {
	broker := &mockBroker{}
	scanner := NewCompetitorScanner(&mockGate{}, broker)

	n := len(dorks.Competitor)
	for page := 1; page <= n+1; page++ {
		_, err := scanner.Scan(context.Background(), "tenant-1", "powergym", page)
		require.NoError(t, err)
	}
	require.Len(t, broker.queries, n+1)
	assert.Equal(t, broker.queries[0], broker.queries[n], "page n+1 wraps around to the first template")
	assert.NotEqual(t, broker.queries[0], broker.queries[1])
}

func TestCompetitorScanInsufficientCredits(t *testing.T) {
	broker := &mockBroker{}
	scanner := NewCompetitorScanner(&mockGate{deny: true}, broker)

	_, err := scanner.Scan(context.Background(), "tenant-1", "powergym", 1)
	require.Error(t, err)
	assert.Empty(t, broker.queries)
}
