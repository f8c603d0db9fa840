package branding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

type mockStore struct {
	byHost   map[string]*model.BrandingConfig
	byTenant map[string]*model.BrandingConfig
	err      error
	delay    time.Duration
	calls    int
}

func (m *mockStore) BrandingByHost(ctx context.Context, host string) (*model.BrandingConfig, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.byHost[host], nil
}

func (m *mockStore) Branding(ctx context.Context, tenantID string) (*model.BrandingConfig, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.byTenant[tenantID], nil
}

func TestResolveByHost(t *testing.T) {
	store := &mockStore{byHost: map[string]*model.BrandingConfig{
		"leads.acme.com.br": {TenantID: "tenant-1", PlatformName: "Acme Leads", PrimaryColor: "#ff0000"},
	}}
	resolver := NewResolver(store, time.Second)

	cfg := resolver.Resolve(context.Background(), "leads.acme.com.br", "")
	assert.Equal(t, "Acme Leads", cfg.PlatformName)
}

func TestResolveFallsBackToTenant(t *testing.T) {
	store := &mockStore{byTenant: map[string]*model.BrandingConfig{
		"tenant-1": {TenantID: "tenant-1", PlatformName: "Tenant Leads"},
	}}
	resolver := NewResolver(store, time.Second)

	cfg := resolver.Resolve(context.Background(), "unknown.example.com", "tenant-1")
	assert.Equal(t, "Tenant Leads", cfg.PlatformName)
}

func TestResolveDefaultOnFailure(t *testing.T) {
	resolver := NewResolver(&mockStore{err: errors.New("store down")}, time.Second)

	cfg := resolver.Resolve(context.Background(), "leads.acme.com.br", "tenant-1")
	assert.Equal(t, Default, cfg)
}

func TestResolveDefaultOnTimeout(t *testing.T) {
	store := &mockStore{delay: 200 * time.Millisecond}
	resolver := NewResolver(store, 20*time.Millisecond)

	start := time.Now()
	cfg := resolver.Resolve(context.Background(), "slow.example.com", "")
	require.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, Default, cfg)
}

func TestResolveCachesPerHost(t *testing.T) {
	store := &mockStore{byHost: map[string]*model.BrandingConfig{
		"leads.acme.com.br": {PlatformName: "Acme Leads"},
	}}
	resolver := NewResolver(store, time.Second)

	resolver.Resolve(context.Background(), "leads.acme.com.br", "")
	resolver.Resolve(context.Background(), "leads.acme.com.br", "")
	assert.Equal(t, 1, store.calls)

	resolver.Refresh("leads.acme.com.br", "")
	resolver.Resolve(context.Background(), "leads.acme.com.br", "")
	assert.Equal(t, 2, store.calls)
}
