package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// CompetitorScanner mines people publicly complaining about or engaging
// with a competitor, turning each mention into a lead.
type CompetitorScanner struct {
	gate   CreditGate
	broker Broker
}

// NewCompetitorScanner creates a competitor-mention scanner.
func NewCompetitorScanner(gate CreditGate, broker Broker) *CompetitorScanner {
	return &CompetitorScanner{gate: gate, broker: broker}
}

// Scan debits the tenant and runs one page of the competitor-mention scan.
// competitor may be a profile URL, an @handle or a plain name.
func (s *CompetitorScanner) Scan(ctx context.Context, tenantID, competitor string, page int) ([]model.Lead, error) {
	name := CanonicalName(competitor)
	if err := s.gate.UseCredits(ctx, tenantID, billing.CostCompetitorScan, "competitor_scan", "competitor scan: "+name); err != nil {
		return nil, err
	}

	query := dorkFor(dorks.Competitor, page, name)
	resp, err := s.broker.WebSearch(ctx, tenantID, websearch.SearchRequest{
		Query: query,
		Page:  page,
		GL:    "br",
		HL:    "pt-br",
	}, true)
	if err != nil {
		return nil, err
	}

	// Handles have no spaces, display names do, so both sides are
	// compared space-free.
	selfFold := strings.ReplaceAll(Fold(name), " ", "")
	leads := make([]model.Lead, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		extracted := extractMentionName(r)
		if extracted == "" {
			continue
		}
		// Results naming the competitor itself are false positives.
		if strings.Contains(strings.ReplaceAll(Fold(extracted), " ", ""), selfFold) {
			continue
		}
		lead := model.NewLead(tenantID, "", extracted)
		lead.Location = "web"
		lead.Category = "competitor_mention"
		lead.SetSocialLink("source", r.Link)
		lead.Details.Merge(model.SourceComputed, map[string]any{
			"mention_snippet": r.Snippet,
			"mention_source":  Domain(r.Link),
			"competitor":      name,
		})
		leads = append(leads, lead)
	}
	zap.L().Info("competitor scan complete",
		zap.String("tenant", tenantID),
		zap.String("competitor", name),
		zap.Int("page", page),
		zap.Int("leads", len(leads)))
	return leads, nil
}

// extractMentionName pulls the author or subject name out of a search hit
// using per-source heuristics. Returns "" when no plausible name is found.
func extractMentionName(r websearch.OrganicResult) string {
	title := strings.TrimSpace(r.Title)
	switch {
	case strings.Contains(r.Link, "instagram.com"):
		// Captions read like `Maria Silva (@mariasilva) on Instagram: "..."`.
		if i := strings.Index(title, "(@"); i > 0 {
			return strings.TrimSpace(title[:i])
		}
		if i := strings.Index(title, " on Instagram"); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	case strings.Contains(r.Link, "facebook.com"):
		// Post titles lead with the author: `João Souza - comprei e ...`.
		for _, sep := range []string{" - ", " – ", " | "} {
			if i := strings.Index(title, sep); i > 0 {
				return strings.TrimSpace(title[:i])
			}
		}
	case strings.Contains(r.Link, "reclameaqui.com.br"):
		// Complaint titles end with the site suffix.
		title = strings.TrimSuffix(title, " - Reclame Aqui")
		if i := strings.Index(title, " | "); i > 0 {
			title = title[:i]
		}
		return strings.TrimSpace(title)
	}
	if title != "" && len(title) <= 80 {
		return title
	}
	return ""
}
