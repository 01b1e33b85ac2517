package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/cache"
	"wayfarer/internal/domain"
	"wayfarer/internal/places"
)

func TestSearchPlacesTool_ReturnsPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{"id": "p1", "name": "Bar Uno", "categories": []string{"tapas_bar"}},
				{"id": "p2", "name": "Museum Dos", "categories": []string{"museum"}},
			},
		})
	}))
	defer srv.Close()
	client := places.New(srv.URL, 5*time.Second, cache.NewInMemoryCache(), time.Minute)
	tool := NewSearchPlaces(client)

	args, _ := json.Marshal(searchPlacesArgs{Query: "places", City: "barcelona"})
	result, err := tool.Call(context.Background(), args)
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, out["count"])
}

func TestSearchPlacesTool_FiltersByCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{
				{"id": "p1", "name": "Bar Uno", "categories": []string{"tapas_bar"}},
				{"id": "p2", "name": "Museum Dos", "categories": []string{"museum"}},
			},
		})
	}))
	defer srv.Close()
	client := places.New(srv.URL, 5*time.Second, cache.NewInMemoryCache(), time.Minute)
	tool := NewSearchPlaces(client)

	args, _ := json.Marshal(searchPlacesArgs{Query: "places", City: "barcelona", Filters: []string{"museum"}})
	result, err := tool.Call(context.Background(), args)
	require.NoError(t, err)
	out := result.(map[string]any)
	assert.Equal(t, 1, out["count"])
}

func TestSearchPlacesTool_RequiresQuery(t *testing.T) {
	tool := NewSearchPlaces(places.New("http://example.invalid", time.Second, nil, 0))
	args, _ := json.Marshal(searchPlacesArgs{City: "barcelona"})
	_, err := tool.Call(context.Background(), args)
	assert.Error(t, err)
	assert.Equal(t, domain.ErrToolError, domain.KindOf(err))
}

func TestCheckOpeningHoursTool_KnownAndUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "p1", "name": "Bar Uno", "opening_hours": map[string]string{"monday": "09:00-18:00"},
		})
	}))
	defer srv.Close()
	client := places.New(srv.URL, 5*time.Second, cache.NewInMemoryCache(), time.Minute)
	tool := NewCheckOpeningHours(client)

	args, _ := json.Marshal(checkOpeningHoursArgs{PlaceID: "p1", When: "monday"})
	result, err := tool.Call(context.Background(), args)
	require.NoError(t, err)
	out := result.(map[string]any)
	assert.Equal(t, true, out["known"])

	args2, _ := json.Marshal(checkOpeningHoursArgs{PlaceID: "p1", When: "tuesday"})
	result2, err := tool.Call(context.Background(), args2)
	require.NoError(t, err)
	out2 := result2.(map[string]any)
	assert.Equal(t, false, out2["known"])
}
