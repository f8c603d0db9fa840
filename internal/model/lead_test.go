package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLead_FallbackID(t *testing.T) {
	withVendorID := NewLead("t1", "place-123", "Power Gym")
	assert.Equal(t, "place-123", withVendorID.ID)
	assert.Equal(t, StatusNew, withVendorID.Status)

	generated := NewLead("t1", "", "No Vendor ID Ltda")
	assert.NotEmpty(t, generated.ID)
	assert.NotEqual(t, generated.ID, NewLead("t1", "", "Other").ID)
}

func TestLead_Transition(t *testing.T) {
	l := NewLead("t1", "id-1", "Acme")

	require.NoError(t, l.Transition(StatusEnriching))
	require.NoError(t, l.Transition(StatusEnriched))

	// Reverts are rejected.
	err := l.Transition(StatusNew)
	require.Error(t, err)
	assert.Equal(t, StatusEnriched, l.Status)

	// Sideways states are always reachable.
	require.NoError(t, l.Transition(StatusParked))
	require.NoError(t, l.Transition(StatusDiscarded))

	assert.Error(t, l.Transition(Status("bogus")))
}

func TestLead_TransitionSameStatusNoop(t *testing.T) {
	l := NewLead("t1", "id-1", "Acme")
	require.NoError(t, l.Transition(StatusNew))
	assert.Equal(t, StatusNew, l.Status)
}

func TestDetails_MergeAdditiveAndIdempotent(t *testing.T) {
	d := Details{}
	d.Merge(SourceRegistry, map[string]any{"legal_name": "Acme Ltda", "city": "Curitiba"})
	d.Merge(SourceSocial, map[string]any{"instagram": "https://instagram.com/acme"})

	// Later source wins on collision, existing keys survive.
	d.Merge(SourceAI, map[string]any{"city": "Curitiba - PR", "score": 80})
	assert.Equal(t, "Curitiba - PR", d.String("city"))
	assert.Equal(t, SourceAI, d["city"].Source)
	assert.Equal(t, "Acme Ltda", d.String("legal_name"))

	// Re-applying the same overlay changes nothing.
	before := len(d)
	d.Merge(SourceAI, map[string]any{"city": "Curitiba - PR", "score": 80})
	assert.Len(t, d, before)
	assert.Equal(t, 80, d.Value("score"))
}

func TestDetails_MergeSkipsNil(t *testing.T) {
	d := Details{}
	d.Merge(SourceRegistry, map[string]any{"email": "x@y.com"})
	d.Merge(SourceAI, map[string]any{"email": nil})
	assert.Equal(t, "x@y.com", d.String("email"))
}

func TestLead_SetSocialLink(t *testing.T) {
	l := NewLead("t1", "id-1", "Acme")
	l.SetSocialLink("whatsapp", "")
	_, ok := l.SocialLinks["whatsapp"]
	assert.False(t, ok)

	l.SetSocialLink("whatsapp", "https://wa.me/554133334444")
	assert.Equal(t, "https://wa.me/554133334444", l.SocialLinks["whatsapp"])
}
