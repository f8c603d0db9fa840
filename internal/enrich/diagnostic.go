package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/prospeqta/leadgen-cli/internal/gateway"
	"github.com/prospeqta/leadgen-cli/internal/model"
)

// fallbackScore is the 0-100 commercial score substituted when the
// diagnostic model is unavailable. A deliberate middle-high default so
// degraded leads still rank as worth a look.
const fallbackScore = 75

const cannedInsight = "Perfil comercial promissor. Dados de diagnóstico indisponíveis no momento; " +
	"recomenda-se contato direto para qualificação."

const diagnosticSystem = `You are a B2B commercial analyst. Given a business profile, produce a ` +
	`strategic sales insight in Brazilian Portuguese. Respond with ONLY a JSON object of the form ` +
	`{"insight": string, "score": integer 1-10, "purchaseProbability": number 0-1}.`

// diagnose asks the model for a commercial read on the lead. The returned
// map is ready for the detail-bag overlay; the 1-10 model score is stored
// on a 0-100 scale.
func (e *Enricher) diagnose(ctx context.Context, lead *model.Lead) (map[string]any, error) {
	completion, err := e.broker.AIComplete(ctx, lead.TenantID, gateway.AIPayload{
		System: diagnosticSystem,
		Prompt: diagnosticPrompt(lead),
	}, false)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Insight             string  `json:"insight"`
		Score               int     `json:"score"`
		PurchaseProbability float64 `json:"purchaseProbability"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(completion.Text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "enrich: malformed diagnostic response")
	}
	if parsed.Score < 1 {
		parsed.Score = 1
	} else if parsed.Score > 10 {
		parsed.Score = 10
	}
	return map[string]any{
		"insight":              parsed.Insight,
		"commercial_score":     parsed.Score * 10,
		"purchase_probability": parsed.PurchaseProbability,
	}, nil
}

func fallbackDiagnostic() map[string]any {
	return map[string]any{
		"insight":          cannedInsight,
		"commercial_score": fallbackScore,
	}
}

func diagnosticPrompt(lead *model.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", lead.Name)
	if lead.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", lead.Category)
	}
	if lead.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", lead.Location)
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", lead.Website)
	}
	for _, key := range []string{"main_activity", "legal_nature", "opened_at", "capital_brl", "rating", "instagram"} {
		if v := lead.Details.Value(key); v != nil && v != "" {
			fmt.Fprintf(&b, "%s: %v\n", key, v)
		}
	}
	return b.String()
}
