package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"wayfarer/internal/domain"
	"wayfarer/internal/places"
)

// SearchPlacesTool delegates to the Places service collaborator. Grounded
// on internal/tools/web.go's HTTP-call-as-tool pattern, generalized from
// page fetch+markdown-extraction to a structured places search.
type SearchPlacesTool struct {
	client *places.Client
}

func NewSearchPlaces(client *places.Client) *SearchPlacesTool {
	return &SearchPlacesTool{client: client}
}

func (t *SearchPlacesTool) Name() string { return "search_places" }

func (t *SearchPlacesTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Search for places by free-text query and city, returning canonical place records.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":   map[string]any{"type": "string", "description": "What to search for, e.g. 'tapas bars'"},
				"city":    map[string]any{"type": "string", "description": "City to search within"},
				"radius":  map[string]any{"type": "integer", "description": "Search radius in meters"},
				"filters": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional category filters"},
			},
			"required": []string{"query", "city"},
		},
	}
}

type searchPlacesArgs struct {
	Query   string   `json:"query"`
	City    string   `json:"city"`
	Radius  int      `json:"radius"`
	Filters []string `json:"filters"`
}

func (t *SearchPlacesTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchPlacesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, domain.NewError(domain.ErrToolError, "invalid search_places arguments", err)
	}
	if args.Query == "" {
		return nil, domain.NewError(domain.ErrToolError, "search_places requires a query", nil)
	}

	found, err := t.client.Search(ctx, args.Query, args.City, args.Radius)
	if err != nil {
		return nil, err
	}
	if len(args.Filters) > 0 {
		found = filterByCategory(found, args.Filters)
	}
	return map[string]any{"places": found, "count": len(found)}, nil
}

func filterByCategory(found []domain.Place, wanted []string) []domain.Place {
	set := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		set[w] = true
	}
	out := make([]domain.Place, 0, len(found))
	for _, p := range found {
		for _, cat := range p.Categories {
			if set[cat] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// GetPlaceDetailsTool fetches a single place's current record, used when
// the user refers back to an earlier result ("tell me more about the
// second one") and needs freshness beyond the memory window's summary.
type GetPlaceDetailsTool struct {
	client *places.Client
}

func NewGetPlaceDetails(client *places.Client) *GetPlaceDetailsTool {
	return &GetPlaceDetailsTool{client: client}
}

func (t *GetPlaceDetailsTool) Name() string { return "get_place_details" }

func (t *GetPlaceDetailsTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch the current canonical record for a single place by id.",
		"parameters": map[string]any{
			"type":       "object",
			"properties": map[string]any{"place_id": map[string]any{"type": "string"}},
			"required":   []string{"place_id"},
		},
	}
}

type getPlaceDetailsArgs struct {
	PlaceID string `json:"place_id"`
}

func (t *GetPlaceDetailsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args getPlaceDetailsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, domain.NewError(domain.ErrToolError, "invalid get_place_details arguments", err)
	}
	if args.PlaceID == "" {
		return nil, domain.NewError(domain.ErrToolError, "get_place_details requires place_id", nil)
	}
	place, err := t.client.Get(ctx, args.PlaceID)
	if err != nil {
		return nil, err
	}
	return place, nil
}

// CheckOpeningHoursTool fetches a place through the Places client (served
// from the cache when the same place was fetched recently) and reports its
// opening-hours entry for the requested day.
type CheckOpeningHoursTool struct {
	client *places.Client
}

func NewCheckOpeningHours(client *places.Client) *CheckOpeningHoursTool {
	return &CheckOpeningHoursTool{client: client}
}

func (t *CheckOpeningHoursTool) Name() string { return "check_opening_hours" }

func (t *CheckOpeningHoursTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Check whether a place is open at a given day/time.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"place_id": map[string]any{"type": "string"},
				"when":     map[string]any{"type": "string", "description": "Day name, e.g. 'monday', 'today'"},
			},
			"required": []string{"place_id", "when"},
		},
	}
}

type checkOpeningHoursArgs struct {
	PlaceID string `json:"place_id"`
	When    string `json:"when"`
}

func (t *CheckOpeningHoursTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args checkOpeningHoursArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, domain.NewError(domain.ErrToolError, "invalid check_opening_hours arguments", err)
	}
	place, err := t.client.Get(ctx, args.PlaceID)
	if err != nil {
		return nil, err
	}
	hours, ok := place.OpeningHours[args.When]
	if !ok {
		return map[string]any{"place_id": args.PlaceID, "known": false}, nil
	}
	return map[string]any{"place_id": args.PlaceID, "known": true, "hours": hours, "summary": fmt.Sprintf("%s: %s", args.When, hours)}, nil
}
