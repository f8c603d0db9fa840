package model

import "time"

// Tenant is an isolated reseller whose data, branding, and credit balance
// are segregated from all others.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
}

// BrandingConfig is the per-tenant white-label configuration. API keys are
// kept out of this struct on purpose: branding is served to the browser.
type BrandingConfig struct {
	TenantID       string `json:"tenant_id"`
	PlatformName   string `json:"platform_name"`
	LogoURL        string `json:"logo_url,omitempty"`
	FaviconURL     string `json:"favicon_url,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	CustomDomain   string `json:"custom_domain,omitempty"`
	SupportEmail   string `json:"support_email,omitempty"`
}

// UsageEvent records one completed outbound vendor call for a tenant.
type UsageEvent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	API       string    `json:"api"`
	Endpoint  string    `json:"endpoint"`
	Status    string    `json:"status"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditTransaction is one row of the tenant credit ledger.
type CreditTransaction struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Amount      int       `json:"amount"` // negative for debits
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// WebhookEndpoint is a tenant-registered receiver for outbound events.
type WebhookEndpoint struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	URL      string `json:"url"`
	Secret   string `json:"-"`
	Event    string `json:"event"`
}
