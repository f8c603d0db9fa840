package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/export"
	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(e, cfg.Server.AllowedOrigins),
		}

		go shutdownWhenDone(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// shutdownWhenDone blocks until ctx is cancelled, then drains the server. The
// signal context is already cancelled by then, so the drain runs on a fresh
// context to give in-flight requests a window to finish.
func shutdownWhenDone(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

// buildRouter wires the dashboard API. Tenant scoping comes from the
// X-Tenant-ID header on every /api route except branding, which resolves by
// request host so the login page can style itself before any session exists.
func buildRouter(e *env, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/branding", func(w http.ResponseWriter, req *http.Request) {
		branding := e.Branding.Resolve(req.Context(), req.Host, req.Header.Get("X-Tenant-ID"))
		writeJSON(w, http.StatusOK, branding)
	})

	r.Get("/api/municipalities/{uf}", func(w http.ResponseWriter, req *http.Request) {
		cities, err := e.IBGE.Municipalities(req.Context(), chi.URLParam(req, "uf"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cities)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireTenant)

		r.Post("/scan/geo", e.handleGeoScan)
		r.Post("/scan/registry", e.handleRegistryScan)
		r.Post("/scan/competitor", e.handleCompetitorScan)
		r.Post("/scan/intent", e.handleIntentScan)

		r.Get("/leads", e.handleListLeads)
		r.Get("/leads/export", e.handleExportLeads)
		r.Get("/leads/{id}", e.handleGetLead)
		r.Delete("/leads/{id}", e.handleDeleteLead)
		r.Patch("/leads/{id}/status", e.handleLeadStatus)
		r.Post("/leads/{id}/enrich", e.handleEnrichLead)

		r.Post("/branding/refresh", e.handleBrandingRefresh)

		r.Post("/checkout", e.handleCheckout)
		r.Get("/credits", e.handleCreditBalance)

		r.Post("/webhooks", e.handleCreateWebhook)
		r.Delete("/webhooks/{id}", e.handleDeleteWebhook)
	})

	return r
}

// requireTenant rejects API requests that carry no tenant identity.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Tenant-ID") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing tenant"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func tenantID(req *http.Request) string {
	return req.Header.Get("X-Tenant-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service failures to HTTP statuses. Credit exhaustion and
// missing vendor keys get distinct codes so the dashboard can show the
// matching call to action instead of a generic failure toast.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
	case errors.Is(err, gateway.ErrMissingAPIKey):
		status = http.StatusPreconditionFailed
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (e *env) handleGeoScan(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Keyword   string `json:"keyword"`
		Location  string `json:"location"`
		PageToken string `json:"page_token"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Keyword == "" || body.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword and location are required"})
		return
	}

	result, err := e.Geo.Scan(req.Context(), tenantID(req), body.Keyword, body.Location, body.PageToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := e.Store.SaveLeads(req.Context(), result.Leads); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leads":           result.Leads,
		"next_page_token": result.NextPageToken,
	})
}

func (e *env) handleRegistryScan(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Keyword string `json:"keyword"`
		UF      string `json:"uf"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Keyword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword is required"})
		return
	}

	leads, err := e.Registry.Scan(req.Context(), tenantID(req), body.Keyword, body.UF)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := e.Store.SaveLeads(req.Context(), leads); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (e *env) handleCompetitorScan(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Competitor string `json:"competitor"`
		Page       int    `json:"page"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Competitor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "competitor is required"})
		return
	}

	leads, err := e.Competitor.Scan(req.Context(), tenantID(req), body.Competitor, body.Page)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := e.Store.SaveLeads(req.Context(), leads); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (e *env) handleIntentScan(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Keyword string `json:"keyword"`
		Page    int    `json:"page"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Keyword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword is required"})
		return
	}

	leads, err := e.Intent.Scan(req.Context(), tenantID(req), body.Keyword, body.Page)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := e.Store.SaveLeads(req.Context(), leads); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func leadFilterFromQuery(req *http.Request) store.LeadFilter {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return store.LeadFilter{
		Status: model.Status(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
}

func (e *env) handleListLeads(w http.ResponseWriter, req *http.Request) {
	leads, err := e.Store.ListLeads(req.Context(), tenantID(req), leadFilterFromQuery(req))
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (e *env) handleGetLead(w http.ResponseWriter, req *http.Request) {
	lead, err := e.Store.GetLead(req.Context(), tenantID(req), chi.URLParam(req, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if lead == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (e *env) handleDeleteLead(w http.ResponseWriter, req *http.Request) {
	if err := e.Store.DeleteLead(req.Context(), tenantID(req), chi.URLParam(req, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *env) handleLeadStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Status model.Status `json:"status"`
	}
	if !decodeBody(w, req, &body) {
		return
	}

	lead, err := e.Store.GetLead(req.Context(), tenantID(req), chi.URLParam(req, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if lead == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
		return
	}
	if err := lead.Transition(body.Status); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err := e.Store.SaveLead(req.Context(), *lead); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (e *env) handleEnrichLead(w http.ResponseWriter, req *http.Request) {
	lead, err := e.Store.GetLead(req.Context(), tenantID(req), chi.URLParam(req, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if lead == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
		return
	}

	enrichErr := e.Enricher.Enrich(req.Context(), lead)
	// The lead is saved in whatever state enrichment left it, so an
	// interrupted run stays visible as ENRICHING on the dashboard.
	if saveErr := e.Store.SaveLead(req.Context(), *lead); saveErr != nil {
		writeError(w, saveErr)
		return
	}
	if enrichErr != nil {
		writeError(w, enrichErr)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (e *env) handleExportLeads(w http.ResponseWriter, req *http.Request) {
	leads, err := e.Store.ListLeads(req.Context(), tenantID(req), leadFilterFromQuery(req))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	if err := export.WriteLeadsXLSX(w, leads); err != nil {
		zap.L().Error("xlsx export failed", zap.Error(err))
	}
}

// handleBrandingRefresh drops the cached branding for the caller's host and
// tenant so an update made through `tenant set-branding` shows up without
// restarting the server.
func (e *env) handleBrandingRefresh(w http.ResponseWriter, req *http.Request) {
	e.Branding.Refresh(req.Host, tenantID(req))
	writeJSON(w, http.StatusOK, e.Branding.Resolve(req.Context(), req.Host, tenantID(req)))
}

func (e *env) handleCheckout(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ProductID string `json:"product_id"`
	}
	if !decodeBody(w, req, &body) {
		return
	}

	session, err := e.Checkout.CreateSession(req.Context(), tenantID(req), body.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *env) handleCreditBalance(w http.ResponseWriter, req *http.Request) {
	balance, err := e.Store.CreditBalance(req.Context(), tenantID(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

func (e *env) handleCreateWebhook(w http.ResponseWriter, req *http.Request) {
	var body struct {
		URL    string `json:"url"`
		Secret string `json:"secret"`
		Event  string `json:"event"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.URL == "" || body.Event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url and event are required"})
		return
	}

	ep := model.WebhookEndpoint{
		ID:       uuid.New().String(),
		TenantID: tenantID(req),
		URL:      body.URL,
		Secret:   body.Secret,
		Event:    body.Event,
	}
	if err := e.Store.CreateWebhook(req.Context(), ep); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ep)
}

func (e *env) handleDeleteWebhook(w http.ResponseWriter, req *http.Request) {
	if err := e.Store.DeleteWebhook(req.Context(), tenantID(req), chi.URLParam(req, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "webhook not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
