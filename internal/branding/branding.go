// Package branding resolves the white-label configuration shown to a
// browser session. Resolution is hostname first, tenant id second, and
// always answers within a bounded time: a slow or failing store yields the
// default branding instead of a blank dashboard.
package branding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// Store is the branding lookup surface the resolver depends on.
type Store interface {
	BrandingByHost(ctx context.Context, host string) (*model.BrandingConfig, error)
	Branding(ctx context.Context, tenantID string) (*model.BrandingConfig, error)
}

// Default is served whenever no tenant-specific branding can be resolved
// in time.
var Default = model.BrandingConfig{
	PlatformName:   "LeadGen",
	PrimaryColor:   "#1a56db",
	SecondaryColor: "#111827",
	SupportEmail:   "suporte@leadgen.app",
}

// Resolver caches resolved branding per host for the life of the process.
// Refresh drops a host so the next request re-reads the store.
type Resolver struct {
	store   Store
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]model.BrandingConfig
}

// NewResolver creates a branding resolver with the given lookup timeout.
func NewResolver(store Store, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		store:   store,
		timeout: timeout,
		cache:   map[string]model.BrandingConfig{},
	}
}

// Resolve returns the branding for a request host, falling back to the
// tenant id when the host is not a registered custom domain, and to the
// default configuration when both lookups fail or exceed the timeout.
// Never returns an error: branding must not block a session from loading.
func (r *Resolver) Resolve(ctx context.Context, host, tenantID string) model.BrandingConfig {
	key := cacheKey(host, tenantID)
	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cfg := r.lookup(ctx, host, tenantID)
	r.mu.Lock()
	r.cache[key] = cfg
	r.mu.Unlock()
	return cfg
}

// Refresh drops the cached branding for a host/tenant pair.
func (r *Resolver) Refresh(host, tenantID string) {
	r.mu.Lock()
	delete(r.cache, cacheKey(host, tenantID))
	r.mu.Unlock()
}

func (r *Resolver) lookup(ctx context.Context, host, tenantID string) model.BrandingConfig {
	if host != "" {
		cfg, err := r.store.BrandingByHost(ctx, host)
		if err == nil && cfg != nil {
			return *cfg
		}
		if err != nil {
			zap.L().Warn("branding host lookup failed", zap.String("host", host), zap.Error(err))
		}
	}
	if tenantID != "" {
		cfg, err := r.store.Branding(ctx, tenantID)
		if err == nil && cfg != nil {
			return *cfg
		}
		if err != nil {
			zap.L().Warn("branding tenant lookup failed", zap.String("tenant", tenantID), zap.Error(err))
		}
	}
	return Default
}

func cacheKey(host, tenantID string) string {
	return host + "|" + tenantID
}
