package places

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/cache"
)

func TestSearch_ParsesPlaceRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/search", r.URL.Path)
		assert.Equal(t, "tapas", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(searchResponse{Places: []placeDTO{
			{ID: "p1", Name: "Bar Uno", Lat: 41.3, Lon: 2.1, Rating: 4.5, Categories: []string{"tapas_bar"}},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, cache.NewInMemoryCache(), time.Minute)
	places, err := c.Search(t.Context(), "tapas", "barcelona", 1000)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Bar Uno", places[0].Name)
	assert.Equal(t, 41.3, places[0].Location.Lat)
}

func TestSearch_CachesSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(searchResponse{Places: []placeDTO{{ID: "p1", Name: "Bar Uno"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, cache.NewInMemoryCache(), time.Minute)
	_, err := c.Search(t.Context(), "tapas", "barcelona", 0)
	require.NoError(t, err)
	_, err = c.Search(t.Context(), "tapas", "barcelona", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGet_NotFoundReturnsToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, nil, time.Minute)
	_, err := c.Get(t.Context(), "missing")
	assert.Error(t, err)
}
