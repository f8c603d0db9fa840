package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospeqta/leadgen-cli/internal/resilience"
)

func TestTextSearch(t *testing.T) {
	var gotKey, gotMask string
	var gotReq TextSearchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		gotMask = r.Header.Get("X-Goog-FieldMask")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"places": [{
				"id": "place-1",
				"displayName": {"text": "Power Gym"},
				"formattedAddress": "Rua X, Curitiba",
				"nationalPhoneNumber": "(41) 3333-4444",
				"rating": 4.7,
				"userRatingCount": 132
			}],
			"nextPageToken": "tok-2"
		}`))
	}))
	defer ts.Close()

	c := NewClient("pk-1", WithBaseURL(ts.URL))
	resp, err := c.TextSearch(context.Background(), TextSearchRequest{
		TextQuery: "academia Curitiba",
		PageSize:  20,
	})
	require.NoError(t, err)

	assert.Equal(t, "pk-1", gotKey)
	assert.Contains(t, gotMask, "places.nationalPhoneNumber")
	assert.Equal(t, "academia Curitiba", gotReq.TextQuery)

	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Power Gym", resp.Places[0].DisplayName.Text)
	assert.Equal(t, 4.7, resp.Places[0].Rating)
	assert.Equal(t, "tok-2", resp.NextPageToken)
}

func TestTextSearchServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient("pk-1", WithBaseURL(ts.URL))
	_, err := c.TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "503 should be retryable")
}

func TestTextSearchBadRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad field mask", http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient("pk-1", WithBaseURL(ts.URL))
	_, err := c.TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err), "400 should not be retried")
}
