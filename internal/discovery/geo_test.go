package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/billing"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/pkg/places"
)

func TestGeoScan(t *testing.T) {
	broker := &mockBroker{placesResp: &places.TextSearchResponse{
		Places: []places.Place{{
			ID:               "place-1",
			DisplayName:      places.DisplayName{Text: "Power Gym"},
			FormattedAddress: "Rua XV de Novembro, Curitiba, PR",
			NationalPhone:    "4133334444",
			WebsiteURI:       "https://powergym.com.br",
			GoogleMapsURI:    "https://maps.google.com/?cid=1",
			PrimaryType:      "gym",
			Rating:           4.7,
			UserRatingCount:  210,
		}},
		NextPageToken: "tok-2",
	}}
	gate := &mockGate{}
	scanner := NewGeoScanner(gate, broker)

	result, err := scanner.Scan(context.Background(), "tenant-1", "Academias", "Curitiba, PR", "")
	require.NoError(t, err)
	require.Len(t, result.Leads, 1)
	assert.Equal(t, "tok-2", result.NextPageToken)

	lead := result.Leads[0]
	assert.Equal(t, "place-1", lead.ID)
	assert.Equal(t, "Power Gym", lead.Name)
	assert.Equal(t, model.StatusNew, lead.Status)
	assert.Equal(t, "https://wa.me/554133334444", lead.SocialLinks["whatsapp"])
	assert.Equal(t, "https://maps.google.com/?cid=1", lead.SocialLinks["maps"])
	assert.Equal(t, 4.7, lead.Details.Value("rating"))

	assert.Equal(t, []int{billing.CostGeoScan}, gate.amounts)
}

func TestGeoScanNoPhoneNoWhatsApp(t *testing.T) {
	broker := &mockBroker{placesResp: &places.TextSearchResponse{
		Places: []places.Place{{ID: "p", DisplayName: places.DisplayName{Text: "Sem Fone"}}},
	}}
	scanner := NewGeoScanner(&mockGate{}, broker)

	result, err := scanner.Scan(context.Background(), "tenant-1", "padaria", "Curitiba", "")
	require.NoError(t, err)
	_, has := result.Leads[0].SocialLinks["whatsapp"]
	assert.False(t, has)
}

func TestGeoScanInsufficientCredits(t *testing.T) {
	broker := &mockBroker{}
	scanner := NewGeoScanner(&mockGate{deny: true}, broker)

	_, err := scanner.Scan(context.Background(), "tenant-1", "Academias", "Curitiba, PR", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInsufficientCredits))
	assert.Zero(t, broker.placesCalls, "vendor must not be called after a failed debit")
}
