package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

func TestWriteLeadsXLSX(t *testing.T) {
	lead := model.NewLead("tenant-1", "p-1", "Power Gym")
	lead.Phone = "4133334444"
	lead.Location = "Curitiba, PR"
	lead.SetSocialLink("whatsapp", "https://wa.me/554133334444")
	lead.Details.Merge(model.SourceAI, map[string]any{"commercial_score": 80})

	var buf bytes.Buffer
	require.NoError(t, WriteLeadsXLSX(&buf, []model.Lead{lead}))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Power Gym", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "new", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "https://wa.me/554133334444", sheet.Rows[1].Cells[3].Value)
	assert.Equal(t, "80", sheet.Rows[1].Cells[8].Value)
}

func TestWriteLeadsXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLeadsXLSX(&buf, nil))
	assert.Positive(t, buf.Len())
}
