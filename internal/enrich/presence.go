package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/prospeqta/leadgen-cli/internal/discovery"
	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/websearch"
)

// Domains that can never be a business's own site.
var platformDomains = map[string]bool{
	"instagram.com":      true,
	"facebook.com":       true,
	"linkedin.com":       true,
	"youtube.com":        true,
	"twitter.com":        true,
	"x.com":              true,
	"tiktok.com":         true,
	"reclameaqui.com.br": true,
	"tripadvisor.com":    true,
	"ifood.com.br":       true,
	"maps.google.com":    true,
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

const detectiveSystem = `You are a digital detective validating a business's online presence. ` +
	`Given raw search results, identify the business's real Instagram profile URL, ` +
	`Facebook page URL and contact email. Ignore profiles belonging to businesses with ` +
	`the same name in a different city. Respond with ONLY a JSON object of the form ` +
	`{"instagram": string or null, "facebook": string or null, "realEmail": string or null}.`

// detectiveResult is the strict shape the validation model must return.
// Null fields decode to empty strings.
type detectiveResult struct {
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	RealEmail string `json:"realEmail"`
}

// discoverPresence finds the lead's website, then its social profiles and
// contact email, using the AI validator when possible and naive first-match
// extraction when not.
func (e *Enricher) discoverPresence(ctx context.Context, lead *model.Lead) (map[string]any, error) {
	if lead.Website == "" {
		if err := e.findOfficialSite(ctx, lead); err != nil {
			return nil, err
		}
	}

	scope := discovery.Domain(lead.Website)
	if scope == "" {
		scope = strings.TrimSpace(lead.Name + " " + lead.Location)
	}

	queries := []string{
		fmt.Sprintf(`site:instagram.com "%s"`, scope),
		fmt.Sprintf(`site:facebook.com "%s"`, scope),
		fmt.Sprintf(`"%s" email OR contato`, scope),
	}

	results := make([]*websearch.SearchResponse, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			resp, err := e.broker.WebSearch(gctx, lead.TenantID, websearch.SearchRequest{Query: q, GL: "br", HL: "pt-br"}, true)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := e.validatePresence(ctx, lead, results)
	social := map[string]any{
		"instagram":  found.Instagram,
		"facebook":   found.Facebook,
		"real_email": found.RealEmail,
	}
	if found.RealEmail != "" {
		social["email"] = found.RealEmail
	}
	if lead.Website != "" {
		social["website"] = lead.Website
	}
	return social, nil
}

// findOfficialSite takes the first organic hit that is not a social or
// review platform. No hit leaves the website empty, which is fine.
func (e *Enricher) findOfficialSite(ctx context.Context, lead *model.Lead) error {
	query := fmt.Sprintf(`"%s" %s site oficial`, lead.Name, lead.Location)
	resp, err := e.broker.WebSearch(ctx, lead.TenantID, websearch.SearchRequest{Query: query, GL: "br", HL: "pt-br"}, true)
	if err != nil {
		return err
	}
	for _, r := range resp.Organic {
		d := discovery.Domain(r.Link)
		if d == "" || platformDomains[d] {
			continue
		}
		lead.Website = r.Link
		return nil
	}
	return nil
}

// validatePresence asks the model to pick the real profiles out of the raw
// search results, falling back to naive extraction when the model fails or
// returns something unparsable.
func (e *Enricher) validatePresence(ctx context.Context, lead *model.Lead, results []*websearch.SearchResponse) detectiveResult {
	var corpus strings.Builder
	for _, resp := range results {
		if resp == nil {
			continue
		}
		for _, r := range resp.Organic {
			fmt.Fprintf(&corpus, "%s\n%s\n%s\n\n", r.Title, r.Link, r.Snippet)
		}
	}

	prompt := fmt.Sprintf("Business: %s\nLocation: %s\nWebsite: %s\n\nSearch results:\n%s",
		lead.Name, lead.Location, lead.Website, corpus.String())
	completion, err := e.broker.AIComplete(ctx, lead.TenantID, gateway.AIPayload{
		System: detectiveSystem,
		Prompt: prompt,
	}, false)
	if err == nil {
		var parsed struct {
			Instagram *string `json:"instagram"`
			Facebook  *string `json:"facebook"`
			RealEmail *string `json:"realEmail"`
		}
		if jsonErr := json.Unmarshal([]byte(cleanJSON(completion.Text)), &parsed); jsonErr == nil {
			return detectiveResult{
				Instagram: deref(parsed.Instagram),
				Facebook:  deref(parsed.Facebook),
				RealEmail: deref(parsed.RealEmail),
			}
		}
	}
	return naiveExtract(results)
}

// naiveExtract takes the first plausible match of each kind from the raw
// results, no validation.
func naiveExtract(results []*websearch.SearchResponse) detectiveResult {
	var out detectiveResult
	for _, resp := range results {
		if resp == nil {
			continue
		}
		for _, r := range resp.Organic {
			switch {
			case out.Instagram == "" && strings.Contains(r.Link, "instagram.com"):
				out.Instagram = r.Link
			case out.Facebook == "" && strings.Contains(r.Link, "facebook.com"):
				out.Facebook = r.Link
			}
			if out.RealEmail == "" {
				if m := emailPattern.FindString(r.Snippet); m != "" {
					out.RealEmail = m
				}
			}
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// cleanJSON extracts a JSON object from model output that may be wrapped in
// markdown code fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
