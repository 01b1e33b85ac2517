// Package places is the HTTP client for the Places microservice
// collaborator (spec.md §6 outbound interface). Grounded on
// internal/tools/web.go's WebClient — a struct wrapping an *http.Client
// with a configured timeout, exposing typed Get-style methods instead of
// the teacher's markdown-extraction pipeline.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"wayfarer/internal/cache"
	"wayfarer/internal/domain"
)

// Client fetches canonical place records over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
}

func New(baseURL string, timeout time.Duration, c cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

type searchResponse struct {
	Places []placeDTO `json:"places"`
}

type placeDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Address      string            `json:"address"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Rating       float64           `json:"rating"`
	Categories   []string          `json:"categories"`
	OpeningHours map[string]string `json:"opening_hours"`
}

func (p placeDTO) toDomain() domain.Place {
	return domain.Place{
		ID:           p.ID,
		Name:         p.Name,
		Address:      p.Address,
		Location:     domain.Coordinates{Lat: p.Lat, Lon: p.Lon},
		Rating:       p.Rating,
		Categories:   p.Categories,
		OpeningHours: p.OpeningHours,
	}
}

// Search calls GET /places/search?q=…&city=…&radius=… and returns canonical
// place records, consulting the cache keyed on the query, city and radius
// first.
func (c *Client) Search(ctx context.Context, query, city string, radiusMeters int) ([]domain.Place, error) {
	cacheKey := cache.PlacesKey(fmt.Sprintf("search|%s|%s|%d", query, city, radiusMeters))
	if c.cache != nil {
		var cached []domain.Place
		if ok, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("q", query)
	if city != "" {
		q.Set("city", city)
	}
	if radiusMeters > 0 {
		q.Set("radius", strconv.Itoa(radiusMeters))
	}

	var parsed searchResponse
	if err := c.get(ctx, "/places/search?"+q.Encode(), &parsed); err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		places = append(places, p.toDomain())
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, places, c.cacheTTL)
	}
	return places, nil
}

// Get fetches a single place by id, used when the reason-act loop needs
// fresher detail than what the memory window's cached summary carries.
func (c *Client) Get(ctx context.Context, placeID string) (domain.Place, error) {
	cacheKey := cache.PlacesKey("get|" + placeID)
	if c.cache != nil {
		var cached domain.Place
		if ok, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	var dto placeDTO
	if err := c.get(ctx, "/places/"+url.PathEscape(placeID), &dto); err != nil {
		return domain.Place{}, err
	}
	place := dto.toDomain()

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, place, c.cacheTTL)
	}
	return place, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("places: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewError(domain.ErrToolError, "places service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewError(domain.ErrToolError, "place not found", nil)
	}
	if resp.StatusCode >= 400 {
		return domain.NewError(domain.ErrToolError, fmt.Sprintf("places service returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return domain.NewError(domain.ErrToolError, "decode places response", err)
	}
	return nil
}
