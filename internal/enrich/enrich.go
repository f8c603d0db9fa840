// Package enrich deepens a single lead: registry data, social presence via
// multi-query search plus AI validation, and an AI commercial diagnostic.
// Everything degrades to heuristic defaults except gateway hard failures,
// which abort the run.
package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/discovery"
	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/ai"
	"github.com/prospeqta/leadgen-cli/pkg/cnpj"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// Broker is the outbound call surface the enricher depends on.
type Broker interface {
	WebSearch(ctx context.Context, tenantID string, req websearch.SearchRequest, useCache bool) (*websearch.SearchResponse, error)
	AIComplete(ctx context.Context, tenantID string, p gateway.AIPayload, useCache bool) (*ai.Completion, error)
}

// Notifier is told when a lead reaches the enriched state. Implementations
// must not block; delivery is best effort.
type Notifier interface {
	LeadEnriched(ctx context.Context, lead model.Lead)
}

// Enricher runs the three-step deep dive over one lead.
type Enricher struct {
	broker   Broker
	resolver cnpj.Resolver
	notifier Notifier
	now      func() time.Time
}

// Option configures the enricher.
type Option func(*Enricher)

// WithNotifier attaches a completion notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Enricher) {
		e.notifier = n
	}
}

// New creates an enricher.
func New(broker Broker, resolver cnpj.Resolver, opts ...Option) *Enricher {
	e := &Enricher{broker: broker, resolver: resolver, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich mutates the lead in place: registry data first, then social
// presence, then the AI diagnostic, each overlaid onto the detail bag in
// that order so later sources win on collision. The lead moves through
// ENRICHING to ENRICHED; on a hard failure it is left in ENRICHING for the
// caller to handle.
func (e *Enricher) Enrich(ctx context.Context, lead *model.Lead) error {
	// Re-enriching an already enriched lead skips the ENRICHING hop so
	// the status never reverts.
	if lead.Status != model.StatusEnriched {
		if err := lead.Transition(model.StatusEnriching); err != nil {
			return err
		}
	}

	e.enrichRegistry(ctx, lead)

	social, err := e.discoverPresence(ctx, lead)
	if err != nil {
		if isHardFailure(err) {
			return err
		}
		zap.L().Warn("presence discovery degraded", zap.String("lead", lead.ID), zap.Error(err))
	} else {
		lead.Details.Merge(model.SourceSocial, social)
		lead.SetSocialLink("instagram", lead.Details.String("instagram"))
		lead.SetSocialLink("facebook", lead.Details.String("facebook"))
	}

	diag, err := e.diagnose(ctx, lead)
	if err != nil {
		if isHardFailure(err) {
			return err
		}
		zap.L().Warn("diagnostic degraded", zap.String("lead", lead.ID), zap.Error(err))
		diag = fallbackDiagnostic()
	}
	lead.Details.Merge(model.SourceAI, diag)

	computed := map[string]any{"enriched_at": e.now().UTC().Format(time.RFC3339)}
	if link := discovery.WhatsAppLink(lead.Phone); link != "" {
		lead.SetSocialLink("whatsapp", link)
	}
	lead.Details.Merge(model.SourceComputed, computed)

	if err := lead.Transition(model.StatusEnriched); err != nil {
		return err
	}
	if e.notifier != nil {
		e.notifier.LeadEnriched(ctx, *lead)
	}
	return nil
}

// enrichRegistry resolves full registry data when the lead carries a
// registry number. Failures here never block the rest of the run.
func (e *Enricher) enrichRegistry(ctx context.Context, lead *model.Lead) {
	number, ok := registryNumber(lead)
	if !ok {
		return
	}
	rec, err := e.resolver.Resolve(ctx, number)
	if err != nil || rec == nil {
		if err != nil {
			zap.L().Warn("registry enrichment degraded", zap.String("lead", lead.ID), zap.Error(err))
		}
		return
	}
	lead.Details.Merge(model.SourceRegistry, rec.Map())
	if lead.Phone == "" {
		lead.Phone = rec.Phone
	}
}

func registryNumber(lead *model.Lead) (string, bool) {
	if n, ok := cnpj.Normalize(lead.SocialLinks["registry"]); ok {
		return n, true
	}
	if n, ok := cnpj.Normalize(lead.Details.String("cnpj")); ok {
		return n, true
	}
	return "", false
}

// isHardFailure reports whether the error must abort enrichment instead of
// degrading it.
func isHardFailure(err error) bool {
	return errors.Is(err, gateway.ErrMissingAPIKey) ||
		errors.Is(err, billing.ErrInsufficientCredits) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
