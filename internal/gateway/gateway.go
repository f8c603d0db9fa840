// Package gateway is the single choke point for outbound vendor HTTP calls.
// It caches responses, retries with backoff, dispatches by vendor tag, and
// meters usage per tenant.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/internal/resilience"
)

// API tags a vendor capability the gateway can route to.
type API string

const (
	APIPlaces API = "places"
	APISearch API = "search"
	APIAI     API = "ai"
)

// ErrMissingAPIKey is returned when the tenant has no key configured for
// the requested vendor. Callers special-case it to show actionable guidance
// instead of a generic failure.
var ErrMissingAPIKey = errors.New("vendor API key not configured")

// ErrUnknownAPI is returned for an unregistered vendor tag.
var ErrUnknownAPI = errors.New("unknown vendor API")

// Handler executes one vendor capability with a tenant-supplied key.
type Handler interface {
	Call(ctx context.Context, apiKey, endpoint string, payload json.RawMessage) (json.RawMessage, error)
}

// KeySource resolves per-tenant vendor API keys.
type KeySource interface {
	GetAPIKey(ctx context.Context, tenantID, api string) (string, error)
}

// UsageRecorder persists per-tenant usage events.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, ev model.UsageEvent) error
}

// Request describes one brokered vendor call.
type Request struct {
	API      API
	Endpoint string
	Payload  any
	TenantID string
	UseCache bool
}

// Gateway brokers outbound vendor calls.
type Gateway struct {
	handlers map[API]Handler
	keys     KeySource
	usage    UsageRecorder
	cache    *Cache
	retry    resilience.RetryConfig
}

// New creates a gateway. The cache is injected so the composition root owns
// its lifetime and bounds.
func New(keys KeySource, usage UsageRecorder, cache *Cache, retry resilience.RetryConfig) *Gateway {
	return &Gateway{
		handlers: make(map[API]Handler),
		keys:     keys,
		usage:    usage,
		cache:    cache,
		retry:    retry,
	}
}

// Register installs the handler for a vendor tag.
func (g *Gateway) Register(api API, h Handler) {
	g.handlers[api] = h
}

// Call brokers one vendor request: cache lookup, key resolution, retried
// vendor call, cache fill, usage recording. Usage is recorded on every
// completed call, cache hits included, and its failures never affect the
// primary path.
func (g *Gateway) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	handler, ok := g.handlers[req.API]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownAPI, "gateway: %s", req.API)
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, eris.Wrap(err, "gateway: marshal payload")
	}

	key := Key(req.API, req.Endpoint, payload)
	if req.UseCache {
		if cached, hit := g.cache.Get(key); hit {
			g.recordUsage(req, "ok", true)
			return cached, nil
		}
	}

	apiKey, err := g.keys.GetAPIKey(ctx, req.TenantID, string(req.API))
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: resolve %s key", req.API)
	}
	if apiKey == "" {
		return nil, eris.Wrapf(ErrMissingAPIKey, "gateway: %s", req.API)
	}

	retryCfg := g.retry
	retryCfg.OnRetry = resilience.RetryLogger(string(req.API), req.Endpoint)

	result, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (json.RawMessage, error) {
		return handler.Call(ctx, apiKey, req.Endpoint, payload)
	})
	if err != nil {
		g.recordUsage(req, "error", false)
		return nil, eris.Wrapf(err, "gateway: %s %s", req.API, req.Endpoint)
	}

	if req.UseCache {
		g.cache.Set(key, result)
	}
	g.recordUsage(req, "ok", false)
	return result, nil
}

// recordUsage writes the usage event on a detached context so a slow or
// failing store never blocks or fails the brokered call.
func (g *Gateway) recordUsage(req Request, status string, cached bool) {
	if g.usage == nil {
		return
	}
	ev := model.UsageEvent{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		API:       string(req.API),
		Endpoint:  req.Endpoint,
		Status:    status,
		Cached:    cached,
		CreatedAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.usage.RecordUsage(ctx, ev); err != nil {
			zap.L().Warn("usage recording failed",
				zap.String("tenant", ev.TenantID),
				zap.String("api", ev.API),
				zap.Error(err),
			)
		}
	}()
}
