package gateway

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetSetAndExpiry(t *testing.T) {
	now := time.Now()
	c := NewCache(time.Minute, 10)
	c.now = func() time.Time { return now }

	key := Key(APISearch, "search", []byte(`{"q":"gyms"}`))
	_, hit := c.Get(key)
	assert.False(t, hit)

	c.Set(key, json.RawMessage(`{"a":1}`))
	v, hit := c.Get(key)
	assert.True(t, hit)
	assert.JSONEq(t, `{"a":1}`, string(v))

	// Advance past the TTL.
	now = now.Add(61 * time.Second)
	_, hit = c.Get(key)
	assert.False(t, hit)
	assert.Zero(t, c.Len())
}

func TestCache_BoundedEviction(t *testing.T) {
	c := NewCache(time.Minute, 3)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), json.RawMessage(`{}`))
	}
	assert.LessOrEqual(t, c.Len(), 3)

	// The most recent write always lands.
	_, hit := c.Get("k4")
	assert.True(t, hit)
}

func TestKey_Deterministic(t *testing.T) {
	a := Key(APIPlaces, "searchText", []byte(`{"textQuery":"Academias Curitiba"}`))
	b := Key(APIPlaces, "searchText", []byte(`{"textQuery":"Academias Curitiba"}`))
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Key(APISearch, "searchText", []byte(`{"textQuery":"Academias Curitiba"}`)))
	assert.NotEqual(t, a, Key(APIPlaces, "other", []byte(`{"textQuery":"Academias Curitiba"}`)))
	assert.NotEqual(t, a, Key(APIPlaces, "searchText", []byte(`{"textQuery":"Dentistas"}`)))
}
