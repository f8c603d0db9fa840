package cnpj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"12.345.678/0001-90", "12345678000190", true},
		{"12345678000190", "12345678000190", true},
		{"  12 345 678 0001 90 ", "12345678000190", true},
		{"1234567800019", "", false},  // 13 digits
		{"123456780001901", "", false}, // 15 digits
		{"", "", false},
		{"não é cnpj", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		assert.Equal(t, tt.valid, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestFromText(t *testing.T) {
	text := `Empresa ABC LTDA CNPJ 12.345.678/0001-90 consta no cadastro.
Veja também 98765432000110 e de novo 12.345.678/0001-90.
Número curto 123.456 não vale. CEP 80000-000 também não.`

	got := FromText(text)
	assert.Equal(t, []string{"12345678000190", "98765432000110"}, got)
}

func TestFromText_NoCandidates(t *testing.T) {
	assert.Empty(t, FromText("nada por aqui, só texto"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.345.678/0001-90", Format("12345678000190"))
	assert.Equal(t, "123", Format("123"))
}
