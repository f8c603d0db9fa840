package export

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/prospeqta/leadgen-cli/internal/config"
	"github.com/prospeqta/leadgen-cli/internal/model"
)

// Salesforce exports leads as Lead sObjects. The underlying library does
// not take a context, so cancellation only covers the rate-limiter wait.
type Salesforce struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewSalesforce creates a Salesforce exporter using JWT bearer auth.
func NewSalesforce(cfg config.SalesforceConfig) (*Salesforce, error) {
	if cfg.ClientID == "" {
		return nil, eris.New("export: salesforce client ID is required")
	}
	pemData, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "export: read salesforce JWT private key")
	}
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "export: init salesforce")
	}
	return NewSalesforceClient(sf), nil
}

// NewSalesforceClient wraps an already initialized Salesforce connection.
func NewSalesforceClient(sf *salesforce.Salesforce) *Salesforce {
	return &Salesforce{sf: sf, limiter: rate.NewLimiter(5, 5)}
}

// ExportLead inserts the lead as a Salesforce Lead record.
func (s *Salesforce) ExportLead(ctx context.Context, lead model.Lead) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}

	record := map[string]any{
		"Company":    lead.Name,
		"LastName":   lead.Name,
		"LeadSource": "leadgen",
	}
	if lead.Phone != "" {
		record["Phone"] = lead.Phone
	}
	if email := lead.Details.String("email"); email != "" {
		record["Email"] = email
	}
	if lead.Website != "" {
		record["Website"] = lead.Website
	}
	if lead.Location != "" {
		record["City"] = strings.SplitN(lead.Location, ",", 2)[0]
	}
	if insight := lead.Details.String("insight"); insight != "" {
		record["Description"] = insight
	}

	result, err := s.sf.InsertOne("Lead", record)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: export lead %s", lead.ID))
	}
	if !result.Success {
		return eris.New(fmt.Sprintf("sf: export lead %s failed: %v", lead.ID, result.Errors))
	}
	return nil
}
