package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// defaultIntentScore is attached to every intent-scan lead. Scoring these
// results with a model is deliberately not done; showing up in a
// purchase-intent dork at all is treated as a strong signal.
const defaultIntentScore = 0.85

// IntentScanner finds people publicly asking to buy a product or service.
type IntentScanner struct {
	gate   CreditGate
	broker Broker
}

// NewIntentScanner creates a buyer-intent scanner.
func NewIntentScanner(gate CreditGate, broker Broker) *IntentScanner {
	return &IntentScanner{gate: gate, broker: broker}
}

// Scan debits the tenant and runs one page of the buyer-intent scan for a
// product keyword.
func (s *IntentScanner) Scan(ctx context.Context, tenantID, keyword string, page int) ([]model.Lead, error) {
	if err := s.gate.UseCredits(ctx, tenantID, billing.CostIntentScan, "intent_scan", "intent scan: "+keyword); err != nil {
		return nil, err
	}

	query := dorkFor(dorks.Intent, page, keyword)
	resp, err := s.broker.WebSearch(ctx, tenantID, websearch.SearchRequest{
		Query: query,
		Page:  page,
		GL:    "br",
		HL:    "pt-br",
	}, true)
	if err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		name := strings.TrimSpace(r.Title)
		if name == "" {
			continue
		}
		lead := model.NewLead(tenantID, "", name)
		lead.Location = "web"
		lead.Category = "buyer_intent"
		lead.SetSocialLink("source", r.Link)
		lead.Details.Merge(model.SourceComputed, map[string]any{
			"intent_score":   defaultIntentScore,
			"intent_snippet": r.Snippet,
			"intent_source":  Domain(r.Link),
			"keyword":        keyword,
		})
		leads = append(leads, lead)
	}
	zap.L().Info("intent scan complete",
		zap.String("tenant", tenantID),
		zap.String("keyword", keyword),
		zap.Int("page", page),
		zap.Int("leads", len(leads)))
	return leads, nil
}
