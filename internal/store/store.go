// Package store persists tenants, leads, credits, usage and webhooks. Every
// lead and webhook query is scoped by tenant id; cross-tenant reads are not
// expressible through this interface.
package store

import (
	"context"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for the platform.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, name, customDomain string) (*model.Tenant, error)
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)

	// Vendor API keys, kept in their own table so branding queries can
	// never leak them.
	SetAPIKey(ctx context.Context, tenantID, api, key string) error
	GetAPIKey(ctx context.Context, tenantID, api string) (string, error)

	// Branding
	SetBranding(ctx context.Context, cfg model.BrandingConfig) error
	Branding(ctx context.Context, tenantID string) (*model.BrandingConfig, error)
	BrandingByHost(ctx context.Context, host string) (*model.BrandingConfig, error)

	// Credit ledger
	GrantCredits(ctx context.Context, tenantID string, amount int, source, description string) error
	DebitCredits(ctx context.Context, tenantID string, amount int, source, description string) (bool, error)
	CreditBalance(ctx context.Context, tenantID string) (int, error)

	// Leads
	SaveLead(ctx context.Context, lead model.Lead) error
	SaveLeads(ctx context.Context, leads []model.Lead) error
	GetLead(ctx context.Context, tenantID, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error)
	DeleteLead(ctx context.Context, tenantID, id string) error

	// Usage log
	RecordUsage(ctx context.Context, ev model.UsageEvent) error

	// Webhooks
	CreateWebhook(ctx context.Context, ep model.WebhookEndpoint) error
	WebhooksByEvent(ctx context.Context, tenantID, event string) ([]model.WebhookEndpoint, error)
	DeleteWebhook(ctx context.Context, tenantID, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
