package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/places"
)

const geoPageSize = 20

// GeoScanner finds businesses by keyword and location through the places
// vendor.
type GeoScanner struct {
	gate   CreditGate
	broker Broker
}

// NewGeoScanner creates a geo scanner.
func NewGeoScanner(gate CreditGate, broker Broker) *GeoScanner {
	return &GeoScanner{gate: gate, broker: broker}
}

// GeoResult is one page of geo-scan leads plus the vendor's continuation
// token, empty when the result set is exhausted.
type GeoResult struct {
	Leads         []model.Lead `json:"leads"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// Scan debits the tenant and fetches one page of places matching
// keyword in location.
func (s *GeoScanner) Scan(ctx context.Context, tenantID, keyword, location, pageToken string) (*GeoResult, error) {
	query := strings.TrimSpace(keyword + " " + location)
	if err := s.gate.UseCredits(ctx, tenantID, billing.CostGeoScan, "geo_scan", "geo scan: "+query); err != nil {
		return nil, err
	}

	resp, err := s.broker.PlacesSearch(ctx, tenantID, places.TextSearchRequest{
		TextQuery: query,
		PageToken: pageToken,
		PageSize:  geoPageSize,
	}, true)
	if err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(resp.Places))
	for _, p := range resp.Places {
		leads = append(leads, leadFromPlace(tenantID, location, p))
	}
	zap.L().Info("geo scan complete",
		zap.String("tenant", tenantID),
		zap.String("query", query),
		zap.Int("leads", len(leads)))
	return &GeoResult{Leads: leads, NextPageToken: resp.NextPageToken}, nil
}

func leadFromPlace(tenantID, location string, p places.Place) model.Lead {
	lead := model.NewLead(tenantID, p.ID, p.DisplayName.Text)
	lead.Website = p.WebsiteURI
	lead.Phone = p.NationalPhone
	lead.Category = p.PrimaryType
	lead.Location = p.FormattedAddress
	if lead.Location == "" {
		lead.Location = location
	}
	lead.SetSocialLink("maps", p.GoogleMapsURI)
	lead.SetSocialLink("whatsapp", WhatsAppLink(p.NationalPhone))
	computed := map[string]any{}
	if p.Rating > 0 {
		computed["rating"] = p.Rating
		computed["rating_count"] = p.UserRatingCount
	}
	lead.Details.Merge(model.SourceComputed, computed)
	return lead
}
