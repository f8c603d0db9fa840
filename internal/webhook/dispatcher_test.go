package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

type mockSource struct {
	endpoints []model.WebhookEndpoint
	err       error
}

func (m *mockSource) WebhooksByEvent(_ context.Context, _ string, _ string) ([]model.WebhookEndpoint, error) {
	return m.endpoints, m.err
}

func TestDispatchSignsAndDelivers(t *testing.T) {
	var gotBody []byte
	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Webhook-Signature")
	}))
	defer server.Close()

	source := &mockSource{endpoints: []model.WebhookEndpoint{
		{ID: "wh-1", TenantID: "tenant-1", URL: server.URL, Secret: "s3cret", Event: EventLeadEnriched},
	}}
	dispatcher := NewDispatcher(source, time.Second, WithSynchronousDelivery())

	lead := model.NewLead("tenant-1", "p-1", "Power Gym")
	lead.Phone = "4133334444"
	lead.Details.Merge(model.SourceSocial, map[string]any{"email": "contato@powergym.com.br"})
	lead.Details.Merge(model.SourceAI, map[string]any{"insight": "Academia em expansão."})
	dispatcher.LeadEnriched(context.Background(), lead)

	var env Envelope
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, EventLeadEnriched, env.Event)
	assert.Equal(t, "tenant-1", env.TenantID)
	assert.Equal(t, "Power Gym", env.Data.Name)
	assert.Equal(t, "contato@powergym.com.br", env.Data.Email)
	assert.Equal(t, "Academia em expansão.", env.Data.Insights)

	// Receiver-side verification: hex(sha256(body + secret)).
	expected := fmt.Sprintf("%x", sha256.Sum256(append(gotBody, []byte("s3cret")...)))
	assert.Equal(t, expected, gotSig)
}

func TestDispatchFansOut(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits++
	}))
	defer server.Close()

	source := &mockSource{endpoints: []model.WebhookEndpoint{
		{URL: server.URL, Secret: "a"},
		{URL: server.URL, Secret: "b"},
	}}
	dispatcher := NewDispatcher(source, time.Second, WithSynchronousDelivery())
	dispatcher.Dispatch(context.Background(), "tenant-1", EventLeadEnriched, LeadData{Name: "x"})
	assert.Equal(t, 2, hits)
}

func TestDispatchSwallowsFailures(t *testing.T) {
	source := &mockSource{endpoints: []model.WebhookEndpoint{
		{URL: "http://127.0.0.1:1", Secret: "a"},
	}}
	dispatcher := NewDispatcher(source, 100*time.Millisecond, WithSynchronousDelivery())
	// Must not panic or propagate anything.
	dispatcher.Dispatch(context.Background(), "tenant-1", EventLeadEnriched, LeadData{})

	dispatcher = NewDispatcher(&mockSource{err: errors.New("store down")}, time.Second, WithSynchronousDelivery())
	dispatcher.Dispatch(context.Background(), "tenant-1", EventLeadEnriched, LeadData{})
}

func TestSign(t *testing.T) {
	body := []byte(`{"event":"lead.enriched"}`)
	sig := Sign(body, "secret")
	expected := fmt.Sprintf("%x", sha256.Sum256([]byte(`{"event":"lead.enriched"}secret`)))
	assert.Equal(t, expected, sig)
	// Signing must not mutate the body it was given.
	assert.Equal(t, []byte(`{"event":"lead.enriched"}`), body)
}
