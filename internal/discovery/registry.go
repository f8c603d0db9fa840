package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/cnpj"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// Registry-aggregator sites that index CNPJ records and surface the number
// in search titles and URLs.
var aggregatorDomains = []string{
	"cnpj.biz",
	"casadosdados.com.br",
	"cnpja.com",
	"consultacnpj.com",
}

// RegistryScanner mass-discovers companies by mining CNPJ numbers out of
// search results over registry-aggregator sites, then resolving each number
// against the public registry.
type RegistryScanner struct {
	gate          CreditGate
	broker        Broker
	resolver      cnpj.Resolver
	limiter       *rate.Limiter
	maxCandidates int
}

// NewRegistryScanner creates a registry scanner. ratePerSec throttles the
// sequential candidate resolution so the public registry endpoints are not
// hammered.
func NewRegistryScanner(gate CreditGate, broker Broker, resolver cnpj.Resolver, ratePerSec float64, maxCandidates int) *RegistryScanner {
	if ratePerSec <= 0 {
		ratePerSec = 6
	}
	if maxCandidates <= 0 {
		maxCandidates = 30
	}
	return &RegistryScanner{
		gate:          gate,
		broker:        broker,
		resolver:      resolver,
		limiter:       rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxCandidates: maxCandidates,
	}
}

// Scan debits the tenant and runs a registry mass scan for keyword,
// optionally narrowed to a state (UF). When the keyword itself is a
// registry number the scan degenerates to a direct single-record lookup.
func (s *RegistryScanner) Scan(ctx context.Context, tenantID, keyword, uf string) ([]model.Lead, error) {
	if err := s.gate.UseCredits(ctx, tenantID, billing.CostRegistryScan, "registry_scan", "registry scan: "+keyword); err != nil {
		return nil, err
	}

	if digits, ok := cnpj.Normalize(keyword); ok {
		rec, err := s.resolver.Resolve(ctx, digits)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		return []model.Lead{leadFromRecord(tenantID, rec)}, nil
	}

	candidates, err := s.findCandidates(ctx, tenantID, keyword, uf)
	if err != nil {
		return nil, err
	}
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}

	leads := make([]model.Lead, 0, len(candidates))
	for _, number := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			return leads, err
		}
		rec, err := s.resolver.Resolve(ctx, number)
		if err != nil {
			return leads, err
		}
		if rec == nil {
			continue
		}
		leads = append(leads, leadFromRecord(tenantID, rec))
	}
	zap.L().Info("registry scan complete",
		zap.String("tenant", tenantID),
		zap.String("keyword", keyword),
		zap.Int("candidates", len(candidates)),
		zap.Int("resolved", len(leads)))
	return leads, nil
}

// findCandidates mines CNPJ numbers from a domain-restricted search,
// widening to a plain search when the restricted one comes back empty.
func (s *RegistryScanner) findCandidates(ctx context.Context, tenantID, keyword, uf string) ([]string, error) {
	sites := make([]string, len(aggregatorDomains))
	for i, d := range aggregatorDomains {
		sites[i] = "site:" + d
	}
	restricted := fmt.Sprintf("%q %s (%s)", keyword, uf, strings.Join(sites, " OR "))

	numbers, err := s.mine(ctx, tenantID, restricted)
	if err != nil {
		return nil, err
	}
	if len(numbers) > 0 {
		return numbers, nil
	}
	// Broader, less targeted query as a fallback.
	return s.mine(ctx, tenantID, fmt.Sprintf("%q %s CNPJ", keyword, uf))
}

func (s *RegistryScanner) mine(ctx context.Context, tenantID, query string) ([]string, error) {
	resp, err := s.broker.WebSearch(ctx, tenantID, websearch.SearchRequest{
		Query: strings.TrimSpace(query),
		Num:   s.maxCandidates,
		GL:    "br",
		HL:    "pt-br",
	}, true)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var numbers []string
	for _, r := range resp.Organic {
		for _, n := range cnpj.FromText(r.Title + " " + r.Snippet + " " + r.Link) {
			if seen[n] {
				continue
			}
			seen[n] = true
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

func leadFromRecord(tenantID string, rec *cnpj.Record) model.Lead {
	name := rec.TradeName
	if name == "" {
		name = rec.LegalName
	}
	lead := model.NewLead(tenantID, "", name)
	lead.Phone = rec.Phone
	lead.Category = rec.MainActivity
	if rec.City != "" {
		lead.Location = strings.TrimSpace(rec.City + ", " + rec.State)
	}
	lead.SetSocialLink("registry", cnpj.Format(rec.CNPJ))
	lead.SetSocialLink("whatsapp", WhatsAppLink(rec.Phone))
	lead.Details.Merge(model.SourceRegistry, rec.Map())
	return lead
}
