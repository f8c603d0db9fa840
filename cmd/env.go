package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/branding"
	"github.com/prospeqta/leadgen-cli/internal/discovery"
	"github.com/prospeqta/leadgen-cli/internal/enrich"
	"github.com/prospeqta/leadgen-cli/internal/export"
	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/resilience"
	"github.com/prospeqta/leadgen-cli/internal/store"
	"github.com/prospeqta/leadgen-cli/internal/webhook"
	"github.com/prospeqta/leadgen-cli/pkg/cnpj"
	"github.com/prospeqta/leadgen-cli/pkg/ibge"
)

// env holds the initialized store, broker, scanners, and services shared by
// the serve/scan/enrich/export commands.
type env struct {
	Store      store.Store
	Gateway    *gateway.Gateway
	Gate       *billing.Gate
	Geo        *discovery.GeoScanner
	Registry   *discovery.RegistryScanner
	Competitor *discovery.CompetitorScanner
	Intent     *discovery.IntentScanner
	Enricher   *enrich.Enricher
	Branding   *branding.Resolver
	Checkout   *billing.Checkout
	Dispatcher *webhook.Dispatcher
	IBGE       ibge.Client
	Notion     *export.Notion     // nil when unconfigured
	Salesforce *export.Salesforce // nil when unconfigured
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv sets up the store, the outbound gateway with its vendor handlers,
// and every service over them. Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cache := gateway.NewCache(
		time.Duration(cfg.Gateway.CacheTTLMinutes)*time.Minute,
		cfg.Gateway.CacheMaxEntries,
	)
	gw := gateway.New(st, st, cache, resilience.WithRetries(cfg.Gateway.Retries))
	gw.Register(gateway.APIPlaces, &gateway.PlacesHandler{BaseURL: cfg.Places.BaseURL})
	gw.Register(gateway.APISearch, &gateway.SearchHandler{BaseURL: cfg.Search.BaseURL})
	gw.Register(gateway.APIAI, &gateway.AIHandler{
		Model:     cfg.AI.Model,
		MaxTokens: int64(cfg.AI.MaxTokens),
	})

	gate := billing.NewGate(st)
	resolver := cnpj.NewResolver(
		cnpj.WithTimeout(time.Duration(cfg.Registry.TimeoutSecs) * time.Second),
	)

	dispatcher := webhook.NewDispatcher(st, time.Duration(cfg.Webhook.TimeoutSecs)*time.Second)

	e := &env{
		Store:      st,
		Gateway:    gw,
		Gate:       gate,
		Geo:        discovery.NewGeoScanner(gate, gw),
		Registry:   discovery.NewRegistryScanner(gate, gw, resolver, cfg.Registry.RateLimit, cfg.Registry.MaxCandidates),
		Competitor: discovery.NewCompetitorScanner(gate, gw),
		Intent:     discovery.NewIntentScanner(gate, gw),
		Enricher:   enrich.New(gw, resolver, enrich.WithNotifier(dispatcher)),
		Branding:   branding.NewResolver(st, time.Duration(cfg.Branding.TimeoutMs)*time.Millisecond),
		Checkout:   billing.NewCheckout(cfg.Billing),
		Dispatcher: dispatcher,
		IBGE:       ibge.NewClient(),
	}

	if cfg.Export.Notion.Token != "" && cfg.Export.Notion.LeadDB != "" {
		e.Notion = export.NewNotion(cfg.Export.Notion.Token, cfg.Export.Notion.LeadDB)
		zap.L().Info("notion export enabled")
	}
	if cfg.Export.Salesforce.ClientID != "" {
		sf, err := export.NewSalesforce(cfg.Export.Salesforce)
		if err != nil {
			zap.L().Warn("salesforce export disabled", zap.Error(err))
		} else {
			e.Salesforce = sf
			zap.L().Info("salesforce export enabled")
		}
	}

	return e, nil
}
