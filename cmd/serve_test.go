package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/branding"
	"github.com/prospeqta/leadgen-cli/internal/config"
	"github.com/prospeqta/leadgen-cli/internal/discovery"
	"github.com/prospeqta/leadgen-cli/internal/enrich"
	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/internal/store"
	"github.com/prospeqta/leadgen-cli/internal/webhook"
	"github.com/prospeqta/leadgen-cli/pkg/ai"
	"github.com/prospeqta/leadgen-cli/pkg/cnpj"
	"github.com/prospeqta/leadgen-cli/pkg/ibge"
	"github.com/prospeqta/leadgen-cli/pkg/places"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// testBroker stands in for the gateway on every vendor surface the
// scanners and enricher reach.
type testBroker struct {
	placesResp *places.TextSearchResponse
	searchResp *websearch.SearchResponse
	aiText     string
	err        error
}

func (b *testBroker) PlacesSearch(_ context.Context, _ string, _ places.TextSearchRequest, _ bool) (*places.TextSearchResponse, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.placesResp, nil
}

func (b *testBroker) WebSearch(_ context.Context, _ string, _ websearch.SearchRequest, _ bool) (*websearch.SearchResponse, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.searchResp == nil {
		return &websearch.SearchResponse{}, nil
	}
	return b.searchResp, nil
}

func (b *testBroker) AIComplete(_ context.Context, _ string, _ gateway.AIPayload, _ bool) (*ai.Completion, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &ai.Completion{Text: b.aiText}, nil
}

type testResolver struct{}

func (testResolver) Resolve(_ context.Context, _ string) (*cnpj.Record, error) {
	return nil, nil
}

func newTestEnv(t *testing.T, broker *testBroker) (*env, *model.Tenant) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	tenant, err := st.CreateTenant(context.Background(), "Acme", "leads.acme.com.br")
	require.NoError(t, err)
	require.NoError(t, st.GrantCredits(context.Background(), tenant.ID, 100, "test", "seed"))

	gate := billing.NewGate(st)
	e := &env{
		Store:      st,
		Gate:       gate,
		Geo:        discovery.NewGeoScanner(gate, broker),
		Registry:   discovery.NewRegistryScanner(gate, broker, testResolver{}, 1000, 30),
		Competitor: discovery.NewCompetitorScanner(gate, broker),
		Intent:     discovery.NewIntentScanner(gate, broker),
		Enricher:   enrich.New(broker, testResolver{}),
		Branding:   branding.NewResolver(st, time.Second),
		Dispatcher: webhook.NewDispatcher(st, time.Second),
		IBGE:       ibge.NewClient(),
	}
	return e, tenant
}

func doJSON(t *testing.T, handler http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealth(t *testing.T) {
	e, _ := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestRouterRequiresTenant(t *testing.T) {
	e, _ := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodGet, "/api/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouterGeoScanPersistsAndDebits(t *testing.T) {
	broker := &testBroker{placesResp: &places.TextSearchResponse{
		Places: []places.Place{{
			ID:               "place-1",
			DisplayName:      places.DisplayName{Text: "Power Gym"},
			FormattedAddress: "Rua X, Curitiba",
			NationalPhone:    "(41) 3333-4444",
		}},
		NextPageToken: "tok-2",
	}}
	e, tenant := newTestEnv(t, broker)
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodPost, "/api/scan/geo", tenant.ID, map[string]string{
		"keyword":  "academia",
		"location": "Curitiba",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Leads         []model.Lead `json:"leads"`
		NextPageToken string       `json:"next_page_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "Power Gym", resp.Leads[0].Name)
	assert.Equal(t, "tok-2", resp.NextPageToken)

	stored, err := e.Store.GetLead(context.Background(), tenant.ID, "place-1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	balance, err := e.Store.CreditBalance(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 100-billing.CostGeoScan, balance)
}

func TestRouterGeoScanInsufficientCredits(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	// Drain the seeded balance first.
	ok, err := e.Store.DebitCredits(context.Background(), tenant.ID, 100, "test", "drain")
	require.NoError(t, err)
	require.True(t, ok)

	r := buildRouter(e, []string{"*"})
	rr := doJSON(t, r, http.MethodPost, "/api/scan/geo", tenant.ID, map[string]string{
		"keyword":  "academia",
		"location": "Curitiba",
	})
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
}

func TestRouterScanMissingAPIKey(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{err: gateway.ErrMissingAPIKey})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodPost, "/api/scan/intent", tenant.ID, map[string]any{
		"keyword": "preciso de contador",
		"page":    1,
	})
	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
}

func TestRouterScanValidation(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodPost, "/api/scan/geo", tenant.ID, map[string]string{"keyword": "academia"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, r, http.MethodPost, "/api/scan/competitor", tenant.ID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterLeadLifecycle(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	lead := model.NewLead(tenant.ID, "lead-1", "Power Gym")
	require.NoError(t, e.Store.SaveLead(context.Background(), lead))

	rr := doJSON(t, r, http.MethodGet, "/api/leads", tenant.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Power Gym")

	rr = doJSON(t, r, http.MethodGet, "/api/leads/lead-1", tenant.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodPatch, "/api/leads/lead-1/status", tenant.ID, map[string]string{"status": "parked"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodPatch, "/api/leads/lead-1/status", tenant.ID, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/api/leads/lead-1", tenant.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/api/leads/lead-1", tenant.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterBrandingByHost(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	require.NoError(t, e.Store.SetBranding(context.Background(), model.BrandingConfig{
		TenantID:     tenant.ID,
		PlatformName: "Acme Leads",
		CustomDomain: "leads.acme.com.br",
		PrimaryColor: "#ff0000",
	}))
	r := buildRouter(e, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "http://leads.acme.com.br/api/branding", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Acme Leads")
}

func TestRouterBrandingFallsBackToDefault(t *testing.T) {
	e, _ := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "http://unknown.example.com/api/branding", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), branding.Default.PlatformName)
}

func TestRouterBrandingRefresh(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	// First resolve caches the default because no branding is stored yet.
	req := httptest.NewRequest(http.MethodGet, "http://leads.acme.com.br/api/branding", nil)
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), branding.Default.PlatformName)

	require.NoError(t, e.Store.SetBranding(context.Background(), model.BrandingConfig{
		TenantID:     tenant.ID,
		PlatformName: "Acme Leads",
		CustomDomain: "leads.acme.com.br",
	}))

	// Still the cached default until a refresh is requested.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), branding.Default.PlatformName)

	refresh := httptest.NewRequest(http.MethodPost, "http://leads.acme.com.br/api/branding/refresh", nil)
	refresh.Header.Set("X-Tenant-ID", tenant.ID)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, refresh)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Acme Leads")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), "Acme Leads")
}

func TestRouterMunicipalities(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":4106902,"nome":"Curitiba"}]`))
	}))
	defer ts.Close()

	e, _ := newTestEnv(t, &testBroker{})
	e.IBGE = ibge.NewClient(ibge.WithBaseURL(ts.URL))
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodGet, "/api/municipalities/PR", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Curitiba")
}

func TestRouterCheckout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","url":"https://pay.example.com/cs_1"}`))
	}))
	defer ts.Close()

	e, tenant := newTestEnv(t, &testBroker{})
	e.Checkout = billing.NewCheckout(config.BillingConfig{
		CheckoutBaseURL: ts.URL,
		CheckoutKey:     "sk_test",
		Products: map[string]config.Product{
			"starter": {Name: "Starter", PriceUSD: 49, Credits: 500},
		},
	})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodPost, "/api/checkout", tenant.ID, map[string]string{"product_id": "starter"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "https://pay.example.com/cs_1")
}

func TestRouterWebhookCRUD(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodPost, "/api/webhooks", tenant.ID, map[string]string{
		"url":    "https://receiver.acme.com.br/hooks",
		"secret": "s3cret",
		"event":  webhook.EventLeadEnriched,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var ep model.WebhookEndpoint
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ep))
	require.NotEmpty(t, ep.ID)

	rr = doJSON(t, r, http.MethodDelete, "/api/webhooks/"+ep.ID, tenant.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/api/webhooks/"+ep.ID, tenant.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterExportXLSX(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	lead := model.NewLead(tenant.ID, "lead-1", "Power Gym")
	require.NoError(t, e.Store.SaveLead(context.Background(), lead))
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodGet, "/api/leads/export", tenant.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, rr.Body.Bytes())
}

func TestRouterCreditBalance(t *testing.T) {
	e, tenant := newTestEnv(t, &testBroker{})
	r := buildRouter(e, []string{"*"})

	rr := doJSON(t, r, http.MethodGet, "/api/credits", tenant.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp["credits"])
}
