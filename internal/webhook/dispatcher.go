// Package webhook delivers outbound event notifications to tenant-registered
// receivers. Delivery is fire and forget: a dead receiver never blocks or
// fails the operation that produced the event.
package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// EventLeadEnriched fires when a lead completes enrichment.
const EventLeadEnriched = "lead.enriched"

// Source lists the receivers registered for a tenant and event.
type Source interface {
	WebhooksByEvent(ctx context.Context, tenantID, event string) ([]model.WebhookEndpoint, error)
}

// Envelope is the JSON body POSTed to receivers.
type Envelope struct {
	Event    string   `json:"event"`
	TenantID string   `json:"tenant_id"`
	Data     LeadData `json:"data"`
}

// LeadData is the lead summary carried by lead events.
type LeadData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Insights string `json:"insights"`
}

// Dispatcher posts signed event envelopes to registered receivers.
type Dispatcher struct {
	source  Source
	http    *http.Client
	timeout time.Duration

	// async gates the goroutine hand-off; tests disable it for
	// deterministic delivery.
	async bool
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Dispatcher) {
		d.http = hc
	}
}

// WithSynchronousDelivery makes Dispatch block until delivery finishes.
func WithSynchronousDelivery() Option {
	return func(d *Dispatcher) {
		d.async = false
	}
}

// NewDispatcher creates a webhook dispatcher with the given per-delivery
// timeout.
func NewDispatcher(source Source, timeout time.Duration, opts ...Option) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		source:  source,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		async:   true,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// LeadEnriched notifies every receiver registered for the enriched event.
func (d *Dispatcher) LeadEnriched(ctx context.Context, lead model.Lead) {
	d.Dispatch(ctx, lead.TenantID, EventLeadEnriched, LeadData{
		Name:     lead.Name,
		Email:    lead.Details.String("email"),
		Phone:    lead.Phone,
		Insights: lead.Details.String("insight"),
	})
}

// Dispatch delivers one event to all matching receivers. Errors are logged
// and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, event string, data LeadData) {
	endpoints, err := d.source.WebhooksByEvent(ctx, tenantID, event)
	if err != nil {
		zap.L().Warn("webhook listing failed", zap.String("tenant", tenantID), zap.Error(err))
		return
	}
	if len(endpoints) == 0 {
		return
	}

	body, err := json.Marshal(Envelope{Event: event, TenantID: tenantID, Data: data})
	if err != nil {
		zap.L().Warn("webhook envelope marshal failed", zap.Error(err))
		return
	}

	for _, ep := range endpoints {
		if d.async {
			go d.deliver(ep, body)
		} else {
			d.deliver(ep, body)
		}
	}
}

// deliver runs on a detached context so a caller returning early does not
// cancel an in-flight notification.
func (d *Dispatcher) deliver(ep model.WebhookEndpoint, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("webhook request build failed", zap.String("url", ep.URL), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", Sign(body, ep.Secret))

	resp, err := d.http.Do(req)
	if err != nil {
		zap.L().Warn("webhook delivery failed", zap.String("url", ep.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		zap.L().Warn("webhook receiver rejected event",
			zap.String("url", ep.URL),
			zap.Int("status", resp.StatusCode))
	}
}

// Sign computes the shared-secret signature a receiver verifies:
// hex(sha256(body + secret)).
func Sign(body []byte, secret string) string {
	hash := sha256.Sum256(append(body[:len(body):len(body)], []byte(secret)...))
	return fmt.Sprintf("%x", hash)
}
