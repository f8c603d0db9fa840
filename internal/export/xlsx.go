package export

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

var xlsxHeader = []string{
	"Name", "Status", "Phone", "WhatsApp", "Email", "Website",
	"Location", "Category", "Score", "Insight",
}

// WriteLeadsXLSX writes a spreadsheet with one row per lead.
func WriteLeadsXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().Value = h
	}

	for _, lead := range leads {
		row := sheet.AddRow()
		row.AddCell().Value = lead.Name
		row.AddCell().Value = string(lead.Status)
		row.AddCell().Value = lead.Phone
		row.AddCell().Value = lead.SocialLinks["whatsapp"]
		row.AddCell().Value = lead.Details.String("email")
		row.AddCell().Value = lead.Website
		row.AddCell().Value = lead.Location
		row.AddCell().Value = lead.Category
		if score := lead.Details.Value("commercial_score"); score != nil {
			row.AddCell().Value = fmt.Sprintf("%v", score)
		} else {
			row.AddCell()
		}
		row.AddCell().Value = lead.Details.String("insight")
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
