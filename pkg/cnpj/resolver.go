package cnpj

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Record is the canonical shape the divergent vendor payloads normalize to.
type Record struct {
	CNPJ         string  `json:"cnpj"`
	LegalName    string  `json:"legal_name"`
	TradeName    string  `json:"trade_name,omitempty"`
	Status       string  `json:"status,omitempty"`
	OpenedAt     string  `json:"opened_at,omitempty"`
	LegalNature  string  `json:"legal_nature,omitempty"`
	MainActivity string  `json:"main_activity,omitempty"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Street       string  `json:"street,omitempty"`
	Number       string  `json:"number,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Zip          string  `json:"zip,omitempty"`
	CapitalBRL   float64 `json:"capital_brl,omitempty"`
}

// Map returns the record as a flat attribute map for detail merging.
func (r *Record) Map() map[string]any {
	m := map[string]any{
		"cnpj":       r.CNPJ,
		"legal_name": r.LegalName,
	}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("trade_name", r.TradeName)
	put("registry_status", r.Status)
	put("opened_at", r.OpenedAt)
	put("legal_nature", r.LegalNature)
	put("main_activity", r.MainActivity)
	put("email", r.Email)
	put("phone", r.Phone)
	put("street", r.Street)
	put("street_number", r.Number)
	put("city", r.City)
	put("state", r.State)
	put("zip", r.Zip)
	if r.CapitalBRL > 0 {
		m["capital_brl"] = r.CapitalBRL
	}
	return m
}

// Resolver looks up full registry data for a 14-digit number.
type Resolver interface {
	Resolve(ctx context.Context, number string) (*Record, error)
}

// endpoint is one public registry API in the fallback chain.
type endpoint struct {
	name  string
	url   func(base, number string) string
	parse func(body []byte) (*Record, error)
}

// Option configures the resolver.
type Option func(*chainResolver)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *chainResolver) {
		r.http = hc
	}
}

// WithTimeout overrides the per-endpoint timeout (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(r *chainResolver) {
		r.timeout = d
	}
}

// WithBaseURLs overrides endpoint base URLs by name, for tests.
func WithBaseURLs(bases map[string]string) Option {
	return func(r *chainResolver) {
		for k, v := range bases {
			r.bases[k] = v
		}
	}
}

type chainResolver struct {
	http    *http.Client
	timeout time.Duration
	bases   map[string]string
	chain   []endpoint
}

// NewResolver creates a resolver over the fixed ordered endpoint chain:
// BrasilAPI, minhareceita, ReceitaWS. Each endpoint gets its own timeout;
// the first success wins.
func NewResolver(opts ...Option) Resolver {
	r := &chainResolver{
		http:    &http.Client{},
		timeout: 5 * time.Second,
		bases: map[string]string{
			"brasilapi":    "https://brasilapi.com.br",
			"minhareceita": "https://minhareceita.org",
			"receitaws":    "https://receitaws.com.br",
		},
	}
	r.chain = []endpoint{
		{
			name: "brasilapi",
			url: func(base, n string) string {
				return fmt.Sprintf("%s/api/cnpj/v1/%s", base, n)
			},
			parse: parseBrasilAPI,
		},
		{
			name: "minhareceita",
			url: func(base, n string) string {
				return fmt.Sprintf("%s/%s", base, n)
			},
			parse: parseMinhaReceita,
		},
		{
			name: "receitaws",
			url: func(base, n string) string {
				return fmt.Sprintf("%s/v1/cnpj/%s", base, n)
			},
			parse: parseReceitaWS,
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve tries each endpoint in fixed order until one succeeds. Returns
// (nil, nil) when every endpoint fails or times out: an unresolvable number
// is an expected outcome, not an error.
func (r *chainResolver) Resolve(ctx context.Context, number string) (*Record, error) {
	digits, ok := Normalize(number)
	if !ok {
		return nil, eris.Errorf("cnpj: invalid registry number %q", number)
	}

	for _, ep := range r.chain {
		rec, err := r.tryEndpoint(ctx, ep, digits)
		if err == nil && rec != nil {
			rec.CNPJ = digits
			return rec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Debug("registry endpoint failed",
			zap.String("endpoint", ep.name),
			zap.String("cnpj", digits),
			zap.Error(err),
		)
	}

	zap.L().Warn("registry number unresolvable on all endpoints", zap.String("cnpj", digits))
	return nil, nil
}

func (r *chainResolver) tryEndpoint(ctx context.Context, ep endpoint, digits string) (*Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, ep.url(r.bases[ep.name], digits), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "cnpj: create %s request", ep.name)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "cnpj: call %s", ep.name)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "cnpj: read %s response", ep.name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("cnpj: %s status %d", ep.name, resp.StatusCode)
	}

	rec, err := ep.parse(body)
	if err != nil {
		return nil, eris.Wrapf(err, "cnpj: parse %s response", ep.name)
	}
	return rec, nil
}

// brasilAPIResponse mirrors brasilapi.com.br/api/cnpj/v1.
type brasilAPIResponse struct {
	RazaoSocial         string  `json:"razao_social"`
	NomeFantasia        string  `json:"nome_fantasia"`
	DescSituacao        string  `json:"descricao_situacao_cadastral"`
	DataInicioAtividade string  `json:"data_inicio_atividade"`
	NaturezaJuridica    string  `json:"natureza_juridica"`
	CNAEFiscalDesc      string  `json:"cnae_fiscal_descricao"`
	Email               string  `json:"email"`
	Telefone1           string  `json:"ddd_telefone_1"`
	Logradouro          string  `json:"logradouro"`
	Numero              string  `json:"numero"`
	Municipio           string  `json:"municipio"`
	UF                  string  `json:"uf"`
	CEP                 string  `json:"cep"`
	CapitalSocial       float64 `json:"capital_social"`
}

func parseBrasilAPI(body []byte) (*Record, error) {
	var v brasilAPIResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	if v.RazaoSocial == "" {
		return nil, eris.New("empty razao_social")
	}
	return &Record{
		LegalName:    v.RazaoSocial,
		TradeName:    v.NomeFantasia,
		Status:       v.DescSituacao,
		OpenedAt:     v.DataInicioAtividade,
		LegalNature:  v.NaturezaJuridica,
		MainActivity: v.CNAEFiscalDesc,
		Email:        v.Email,
		Phone:        v.Telefone1,
		Street:       v.Logradouro,
		Number:       v.Numero,
		City:         v.Municipio,
		State:        v.UF,
		Zip:          v.CEP,
		CapitalBRL:   v.CapitalSocial,
	}, nil
}

// minhaReceitaResponse mirrors minhareceita.org.
type minhaReceitaResponse struct {
	RazaoSocial           string  `json:"razao_social"`
	NomeFantasia          string  `json:"nome_fantasia"`
	DescSituacaoCadastral string  `json:"descricao_situacao_cadastral"`
	DataInicioAtividade   string  `json:"data_inicio_atividade"`
	NaturezaJuridica      string  `json:"natureza_juridica"`
	CNAEFiscalDescricao   string  `json:"cnae_fiscal_descricao"`
	Email                 string  `json:"email"`
	DDDTelefone1          string  `json:"ddd_telefone_1"`
	Logradouro            string  `json:"logradouro"`
	Numero                string  `json:"numero"`
	Municipio             string  `json:"municipio"`
	UF                    string  `json:"uf"`
	CEP                   any     `json:"cep"` // string or number depending on record age
	CapitalSocial         float64 `json:"capital_social"`
}

func parseMinhaReceita(body []byte) (*Record, error) {
	var v minhaReceitaResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	if v.RazaoSocial == "" {
		return nil, eris.New("empty razao_social")
	}
	zip := ""
	switch c := v.CEP.(type) {
	case string:
		zip = c
	case float64:
		zip = fmt.Sprintf("%.0f", c)
	}
	return &Record{
		LegalName:    v.RazaoSocial,
		TradeName:    v.NomeFantasia,
		Status:       v.DescSituacaoCadastral,
		OpenedAt:     v.DataInicioAtividade,
		LegalNature:  v.NaturezaJuridica,
		MainActivity: v.CNAEFiscalDescricao,
		Email:        v.Email,
		Phone:        v.DDDTelefone1,
		Street:       v.Logradouro,
		Number:       v.Numero,
		City:         v.Municipio,
		State:        v.UF,
		Zip:          zip,
		CapitalBRL:   v.CapitalSocial,
	}, nil
}

// receitaWSResponse mirrors receitaws.com.br/v1/cnpj.
type receitaWSResponse struct {
	Status             string `json:"status"` // "OK" or "ERROR"
	Nome               string `json:"nome"`
	Fantasia           string `json:"fantasia"`
	Situacao           string `json:"situacao"`
	Abertura           string `json:"abertura"`
	NaturezaJuridica   string `json:"natureza_juridica"`
	AtividadePrincipal []struct {
		Text string `json:"text"`
	} `json:"atividade_principal"`
	Email       string `json:"email"`
	Telefone    string `json:"telefone"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Municipio   string `json:"municipio"`
	UF          string `json:"uf"`
	CEP         string `json:"cep"`
	CapitalStr  string `json:"capital_social"`
}

func parseReceitaWS(body []byte) (*Record, error) {
	var v receitaWSResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	if v.Status == "ERROR" || v.Nome == "" {
		return nil, eris.New("record not found")
	}
	rec := &Record{
		LegalName:   v.Nome,
		TradeName:   v.Fantasia,
		Status:      v.Situacao,
		OpenedAt:    v.Abertura,
		LegalNature: v.NaturezaJuridica,
		Email:       v.Email,
		Phone:       v.Telefone,
		Street:      v.Logradouro,
		Number:      v.Numero,
		City:        v.Municipio,
		State:       v.UF,
		Zip:         v.CEP,
	}
	if len(v.AtividadePrincipal) > 0 {
		rec.MainActivity = v.AtividadePrincipal[0].Text
	}
	// ReceitaWS serves the capital as a decimal string.
	if capital, err := strconv.ParseFloat(v.CapitalStr, 64); err == nil {
		rec.CapitalBRL = capital
	}
	return rec, nil
}
