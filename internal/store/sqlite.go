package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	custom_domain TEXT,
	credits       INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tenant_api_keys (
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	api       TEXT NOT NULL,
	key       TEXT NOT NULL,
	PRIMARY KEY (tenant_id, api)
);

CREATE TABLE IF NOT EXISTS branding (
	tenant_id       TEXT PRIMARY KEY REFERENCES tenants(id),
	platform_name   TEXT NOT NULL,
	logo_url        TEXT,
	favicon_url     TEXT,
	primary_color   TEXT,
	secondary_color TEXT,
	custom_domain   TEXT,
	support_email   TEXT
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT NOT NULL,
	tenant_id    TEXT NOT NULL REFERENCES tenants(id),
	name         TEXT NOT NULL,
	website      TEXT,
	phone        TEXT,
	category     TEXT,
	location     TEXT,
	status       TEXT NOT NULL DEFAULT 'new',
	details      TEXT NOT NULL DEFAULT '{}',
	social_links TEXT NOT NULL DEFAULT '{}',
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id),
	amount      INTEGER NOT NULL,
	source      TEXT NOT NULL,
	description TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_events (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	api        TEXT NOT NULL,
	endpoint   TEXT NOT NULL,
	status     TEXT NOT NULL,
	cached     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS webhooks (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	url       TEXT NOT NULL,
	secret    TEXT NOT NULL,
	event     TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tenants_custom_domain ON tenants(custom_domain) WHERE custom_domain IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_leads_tenant_status ON leads(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_credit_tx_tenant ON credit_transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_usage_tenant ON usage_events(tenant_id);
CREATE INDEX IF NOT EXISTS idx_webhooks_tenant_event ON webhooks(tenant_id, event);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTenant(ctx context.Context, name, customDomain string) (*model.Tenant, error) {
	t := model.Tenant{
		ID:           uuid.New().String(),
		Name:         name,
		CustomDomain: customDomain,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, custom_domain, credits, created_at) VALUES (?, ?, ?, 0, ?)`,
		t.ID, t.Name, nullable(t.CustomDomain), t.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert tenant")
	}
	return &t, nil
}

func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, custom_domain, credits, created_at FROM tenants WHERE id = ?`, id)

	var t model.Tenant
	var domain sql.NullString
	err := row.Scan(&t.ID, &t.Name, &domain, &t.Credits, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get tenant")
	}
	t.CustomDomain = domain.String
	return &t, nil
}

func (s *SQLiteStore) SetAPIKey(ctx context.Context, tenantID, api, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_api_keys (tenant_id, api, key) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id, api) DO UPDATE SET key = excluded.key`,
		tenantID, api, key,
	)
	return eris.Wrapf(err, "sqlite: set api key %s", api)
}

// GetAPIKey returns "" when the tenant has no key for the api; the gateway
// turns that into its missing-key error.
func (s *SQLiteStore) GetAPIKey(ctx context.Context, tenantID, api string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key FROM tenant_api_keys WHERE tenant_id = ? AND api = ?`, tenantID, api)

	var key string
	err := row.Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get api key %s", api)
	}
	return key, nil
}

func (s *SQLiteStore) SetBranding(ctx context.Context, cfg model.BrandingConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branding (tenant_id, platform_name, logo_url, favicon_url, primary_color, secondary_color, custom_domain, support_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			platform_name = excluded.platform_name,
			logo_url = excluded.logo_url,
			favicon_url = excluded.favicon_url,
			primary_color = excluded.primary_color,
			secondary_color = excluded.secondary_color,
			custom_domain = excluded.custom_domain,
			support_email = excluded.support_email`,
		cfg.TenantID, cfg.PlatformName, cfg.LogoURL, cfg.FaviconURL,
		cfg.PrimaryColor, cfg.SecondaryColor, cfg.CustomDomain, cfg.SupportEmail,
	)
	return eris.Wrap(err, "sqlite: set branding")
}

func (s *SQLiteStore) Branding(ctx context.Context, tenantID string) (*model.BrandingConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, platform_name, logo_url, favicon_url, primary_color, secondary_color, custom_domain, support_email
		 FROM branding WHERE tenant_id = ?`, tenantID)
	return scanBranding(row)
}

func (s *SQLiteStore) BrandingByHost(ctx context.Context, host string) (*model.BrandingConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT b.tenant_id, b.platform_name, b.logo_url, b.favicon_url, b.primary_color, b.secondary_color, b.custom_domain, b.support_email
		 FROM branding b JOIN tenants t ON t.id = b.tenant_id
		 WHERE t.custom_domain = ?`, host)
	return scanBranding(row)
}

func (s *SQLiteStore) GrantCredits(ctx context.Context, tenantID string, amount int, source, description string) error {
	if amount <= 0 {
		return eris.New("sqlite: grant amount must be positive")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin grant")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE tenants SET credits = credits + ? WHERE id = ?`, amount, tenantID); err != nil {
		return eris.Wrap(err, "sqlite: grant credits")
	}
	if err := insertTransaction(ctx, tx, tenantID, amount, source, description); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit grant")
}

// DebitCredits atomically checks and debits the balance. The guard lives in
// the UPDATE's WHERE clause so two concurrent debits can never push the
// balance negative.
func (s *SQLiteStore) DebitCredits(ctx context.Context, tenantID string, amount int, source, description string) (bool, error) {
	if amount <= 0 {
		return false, eris.New("sqlite: debit amount must be positive")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin debit")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE tenants SET credits = credits - ? WHERE id = ? AND credits >= ?`,
		amount, tenantID, amount,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: debit credits")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: debit rows affected")
	}
	if n == 0 {
		return false, nil
	}
	if err := insertTransaction(ctx, tx, tenantID, -amount, source, description); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit debit")
	}
	return true, nil
}

func (s *SQLiteStore) CreditBalance(ctx context.Context, tenantID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT credits FROM tenants WHERE id = ?`, tenantID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, eris.Errorf("tenant not found: %s", tenantID)
	}
	return balance, eris.Wrap(err, "sqlite: credit balance")
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead model.Lead) error {
	detailsJSON, linksJSON, err := marshalLead(lead)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			website = excluded.website,
			phone = excluded.phone,
			category = excluded.category,
			location = excluded.location,
			status = excluded.status,
			details = excluded.details,
			social_links = excluded.social_links,
			updated_at = excluded.updated_at`,
		lead.ID, lead.TenantID, lead.Name, lead.Website, lead.Phone, lead.Category,
		lead.Location, string(lead.Status), detailsJSON, linksJSON, lead.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save lead %s", lead.ID)
}

func (s *SQLiteStore) SaveLeads(ctx context.Context, leads []model.Lead) error {
	for _, lead := range leads {
		if err := s.SaveLead(ctx, lead); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, tenantID, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at
		 FROM leads WHERE tenant_id = ? AND id = ?`, tenantID, id)

	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at
		 FROM leads WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leads WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, ev model.UsageEvent) error {
	id := ev.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, tenant_id, api, endpoint, status, cached, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ev.TenantID, ev.API, ev.Endpoint, ev.Status, ev.Cached, createdAt,
	)
	return eris.Wrap(err, "sqlite: record usage")
}

func (s *SQLiteStore) CreateWebhook(ctx context.Context, ep model.WebhookEndpoint) error {
	id := ep.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, tenant_id, url, secret, event) VALUES (?, ?, ?, ?, ?)`,
		id, ep.TenantID, ep.URL, ep.Secret, ep.Event,
	)
	return eris.Wrap(err, "sqlite: create webhook")
}

func (s *SQLiteStore) WebhooksByEvent(ctx context.Context, tenantID, event string) ([]model.WebhookEndpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, url, secret, event FROM webhooks WHERE tenant_id = ? AND event = ?`,
		tenantID, event)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list webhooks")
	}
	defer rows.Close()

	var eps []model.WebhookEndpoint
	for rows.Next() {
		var ep model.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Event); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan webhook")
		}
		eps = append(eps, ep)
	}
	return eps, eris.Wrap(rows.Err(), "sqlite: list webhooks iterate")
}

func (s *SQLiteStore) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM webhooks WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete webhook %s", id)
	}
	return checkRowsAffected(res, "webhook", id)
}

// helpers

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, tx execer, tenantID string, amount int, source, description string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, tenant_id, amount, source, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), tenantID, amount, source, description, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert credit transaction")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalLead(lead model.Lead) (string, string, error) {
	detailsJSON, err := json.Marshal(lead.Details)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal details")
	}
	linksJSON, err := json.Marshal(lead.SocialLinks)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal social links")
	}
	return string(detailsJSON), string(linksJSON), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBranding(row scannable) (*model.BrandingConfig, error) {
	var cfg model.BrandingConfig
	var logo, favicon, primary, secondary, domain, email sql.NullString

	err := row.Scan(&cfg.TenantID, &cfg.PlatformName, &logo, &favicon, &primary, &secondary, &domain, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan branding")
	}
	cfg.LogoURL = logo.String
	cfg.FaviconURL = favicon.String
	cfg.PrimaryColor = primary.String
	cfg.SecondaryColor = secondary.String
	cfg.CustomDomain = domain.String
	cfg.SupportEmail = email.String
	return &cfg, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var website, phone, category, location sql.NullString
	var detailsJSON, linksJSON string

	err := row.Scan(&lead.ID, &lead.TenantID, &lead.Name, &website, &phone, &category,
		&location, &lead.Status, &detailsJSON, &linksJSON, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.Website = website.String
	lead.Phone = phone.String
	lead.Category = category.String
	lead.Location = location.String
	if err := json.Unmarshal([]byte(detailsJSON), &lead.Details); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal details")
	}
	if err := json.Unmarshal([]byte(linksJSON), &lead.SocialLinks); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal social links")
	}
	return &lead, nil
}
