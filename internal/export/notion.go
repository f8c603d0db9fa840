// Package export pushes enriched leads into external CRMs and files.
package export

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// notionAPI is the slice of the Notion client the exporter needs.
type notionAPI interface {
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

type notionClient struct {
	inner *notionapi.Client
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return c.inner.Page.Create(ctx, req)
}

// Notion exports leads as pages of a Notion database.
type Notion struct {
	api     notionAPI
	db      string
	limiter *rate.Limiter
}

// NewNotion creates a Notion exporter writing into the given database.
// Calls are throttled to Notion's documented 3 req/s.
func NewNotion(token, leadDB string) *Notion {
	return &Notion{
		api:     &notionClient{inner: notionapi.NewClient(notionapi.Token(token))},
		db:      leadDB,
		limiter: rate.NewLimiter(3, 1),
	}
}

// ExportLead creates one page for the lead, carrying its contact data and
// AI insight.
func (n *Notion) ExportLead(ctx context.Context, lead model.Lead) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notion: rate limit")
	}

	props := notionapi.Properties{
		"Name":   notionapi.TitleProperty{Title: richText(lead.Name)},
		"Status": notionapi.SelectProperty{Select: notionapi.Option{Name: string(lead.Status)}},
	}
	if lead.Phone != "" {
		props["Phone"] = notionapi.RichTextProperty{RichText: richText(lead.Phone)}
	}
	if email := lead.Details.String("email"); email != "" {
		props["Email"] = notionapi.EmailProperty{Email: email}
	}
	if lead.Website != "" {
		props["Website"] = notionapi.URLProperty{URL: lead.Website}
	}
	if lead.Location != "" {
		props["Location"] = notionapi.RichTextProperty{RichText: richText(lead.Location)}
	}
	if insight := lead.Details.String("insight"); insight != "" {
		props["Insight"] = notionapi.RichTextProperty{RichText: richText(insight)}
	}
	if score, ok := asFloat(lead.Details.Value("commercial_score")); ok {
		props["Score"] = notionapi.NumberProperty{Number: score}
	}

	_, err := n.api.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.db),
		},
		Properties: props,
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("notion: export lead %s", lead.ID))
	}
	return nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}

// asFloat accepts both numeric shapes a detail value can take: int when the
// lead was just enriched in-process, float64 once it has round-tripped
// through the store's JSON columns.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
