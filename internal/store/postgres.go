package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	custom_domain TEXT UNIQUE,
	credits       INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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
	details      JSONB NOT NULL DEFAULT '{}',
	social_links JSONB NOT NULL DEFAULT '{}',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id),
	amount      INTEGER NOT NULL,
	source      TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_events (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	api        TEXT NOT NULL,
	endpoint   TEXT NOT NULL,
	status     TEXT NOT NULL,
	cached     BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS webhooks (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	url       TEXT NOT NULL,
	secret    TEXT NOT NULL,
	event     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_tenant_status ON leads(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_credit_tx_tenant ON credit_transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_usage_tenant ON usage_events(tenant_id);
CREATE INDEX IF NOT EXISTS idx_webhooks_tenant_event ON webhooks(tenant_id, event);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, name, customDomain string) (*model.Tenant, error) {
	t := model.Tenant{
		ID:           uuid.New().String(),
		Name:         name,
		CustomDomain: customDomain,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, custom_domain, credits, created_at) VALUES ($1, $2, $3, 0, $4)`,
		t.ID, t.Name, nullable(t.CustomDomain), t.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert tenant")
	}
	return &t, nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, custom_domain, credits, created_at FROM tenants WHERE id = $1`, id)

	var t model.Tenant
	var domain *string
	err := row.Scan(&t.ID, &t.Name, &domain, &t.Credits, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get tenant")
	}
	if domain != nil {
		t.CustomDomain = *domain
	}
	return &t, nil
}

func (s *PostgresStore) SetAPIKey(ctx context.Context, tenantID, api, key string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_api_keys (tenant_id, api, key) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, api) DO UPDATE SET key = excluded.key`,
		tenantID, api, key,
	)
	return eris.Wrapf(err, "postgres: set api key %s", api)
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, tenantID, api string) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		`SELECT key FROM tenant_api_keys WHERE tenant_id = $1 AND api = $2`,
		tenantID, api).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get api key %s", api)
	}
	return key, nil
}

func (s *PostgresStore) SetBranding(ctx context.Context, cfg model.BrandingConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO branding (tenant_id, platform_name, logo_url, favicon_url, primary_color, secondary_color, custom_domain, support_email)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
	return eris.Wrap(err, "postgres: set branding")
}

func (s *PostgresStore) Branding(ctx context.Context, tenantID string) (*model.BrandingConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT tenant_id, platform_name, logo_url, favicon_url, primary_color, secondary_color, custom_domain, support_email
		 FROM branding WHERE tenant_id = $1`, tenantID)
	cfg, err := scanBranding(row)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

func (s *PostgresStore) BrandingByHost(ctx context.Context, host string) (*model.BrandingConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT b.tenant_id, b.platform_name, b.logo_url, b.favicon_url, b.primary_color, b.secondary_color, b.custom_domain, b.support_email
		 FROM branding b JOIN tenants t ON t.id = b.tenant_id
		 WHERE t.custom_domain = $1`, host)
	cfg, err := scanBranding(row)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

func (s *PostgresStore) GrantCredits(ctx context.Context, tenantID string, amount int, source, description string) error {
	if amount <= 0 {
		return eris.New("postgres: grant amount must be positive")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin grant")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE tenants SET credits = credits + $1 WHERE id = $2`, amount, tenantID); err != nil {
		return eris.Wrap(err, "postgres: grant credits")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO credit_transactions (id, tenant_id, amount, source, description, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), tenantID, amount, source, description, time.Now().UTC()); err != nil {
		return eris.Wrap(err, "postgres: insert credit transaction")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit grant")
}

func (s *PostgresStore) DebitCredits(ctx context.Context, tenantID string, amount int, source, description string) (bool, error) {
	if amount <= 0 {
		return false, eris.New("postgres: debit amount must be positive")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin debit")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE tenants SET credits = credits - $1 WHERE id = $2 AND credits >= $3`,
		amount, tenantID, amount,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: debit credits")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO credit_transactions (id, tenant_id, amount, source, description, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), tenantID, -amount, source, description, time.Now().UTC()); err != nil {
		return false, eris.Wrap(err, "postgres: insert credit transaction")
	}
	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: commit debit")
	}
	return true, nil
}

func (s *PostgresStore) CreditBalance(ctx context.Context, tenantID string) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx,
		`SELECT credits FROM tenants WHERE id = $1`, tenantID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Errorf("tenant not found: %s", tenantID)
	}
	return balance, eris.Wrap(err, "postgres: credit balance")
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead model.Lead) error {
	detailsJSON, linksJSON, err := marshalLead(lead)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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
	return eris.Wrapf(err, "postgres: save lead %s", lead.ID)
}

func (s *PostgresStore) SaveLeads(ctx context.Context, leads []model.Lead) error {
	for _, lead := range leads {
		if err := s.SaveLead(ctx, lead); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, tenantID, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at
		 FROM leads WHERE tenant_id = $1 AND id = $2`, tenantID, id)

	lead, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, tenant_id, name, website, phone, category, location, status, details, social_links, updated_at
		 FROM leads WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $2`
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) DeleteLead(ctx context.Context, tenantID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM leads WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, ev model.UsageEvent) error {
	id := ev.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_events (id, tenant_id, api, endpoint, status, cached, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, ev.TenantID, ev.API, ev.Endpoint, ev.Status, ev.Cached, createdAt,
	)
	return eris.Wrap(err, "postgres: record usage")
}

func (s *PostgresStore) CreateWebhook(ctx context.Context, ep model.WebhookEndpoint) error {
	id := ep.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhooks (id, tenant_id, url, secret, event) VALUES ($1, $2, $3, $4, $5)`,
		id, ep.TenantID, ep.URL, ep.Secret, ep.Event,
	)
	return eris.Wrap(err, "postgres: create webhook")
}

func (s *PostgresStore) WebhooksByEvent(ctx context.Context, tenantID, event string) ([]model.WebhookEndpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, url, secret, event FROM webhooks WHERE tenant_id = $1 AND event = $2`,
		tenantID, event)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list webhooks")
	}
	defer rows.Close()

	var eps []model.WebhookEndpoint
	for rows.Next() {
		var ep model.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Event); err != nil {
			return nil, eris.Wrap(err, "postgres: scan webhook")
		}
		eps = append(eps, ep)
	}
	return eps, eris.Wrap(rows.Err(), "postgres: list webhooks iterate")
}

func (s *PostgresStore) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhooks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete webhook %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("webhook not found: %s", id)
	}
	return nil
}

// scanPgLead scans a lead row where details and social_links arrive as
// JSONB ([]byte).
func scanPgLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var website, phone, category, location *string
	var detailsJSON, linksJSON []byte

	err := row.Scan(&lead.ID, &lead.TenantID, &lead.Name, &website, &phone, &category,
		&location, &lead.Status, &detailsJSON, &linksJSON, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.Website = strOf(website)
	lead.Phone = strOf(phone)
	lead.Category = strOf(category)
	lead.Location = strOf(location)
	if err := json.Unmarshal(detailsJSON, &lead.Details); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal details")
	}
	if err := json.Unmarshal(linksJSON, &lead.SocialLinks); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal social links")
	}
	return &lead, nil
}

func strOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

