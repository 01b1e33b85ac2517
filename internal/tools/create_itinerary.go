package tools

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"wayfarer/internal/domain"
	"wayfarer/internal/places"
)

// meanSpeedKmh is the assumed travel speed per transport mode, used to turn
// inter-stop distance into travel time.
var meanSpeedKmh = map[string]float64{
	"walking": 4.5,
	"transit": 20.0,
	"driving": 35.0,
	"cycling": 15.0,
}

const minStopMinutes = 15

// CreateItineraryTool composes place searches into a routed, time-sliced
// itinerary. Grounded on internal/agents/fleet.go's pattern of chaining
// sub-steps (worker lookups there, place searches here) into one
// structured result.
type CreateItineraryTool struct {
	client *places.Client
}

func NewCreateItinerary(client *places.Client) *CreateItineraryTool {
	return &CreateItineraryTool{client: client}
}

func (t *CreateItineraryTool) Name() string { return "create_itinerary" }

func (t *CreateItineraryTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Compose a multi-stop itinerary from place searches, ordered and time-sliced.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":         map[string]any{"type": "string"},
				"city":          map[string]any{"type": "string"},
				"num_locations": map[string]any{"type": "integer"},
				"duration":      map[string]any{"type": "string", "description": "e.g. '3 hours', 'evening', 'full day'"},
				"num_people":    map[string]any{"type": "integer"},
				"vibe":          map[string]any{"type": "string"},
				"budget":        map[string]any{"type": "string"},
				"transport":     map[string]any{"type": "string", "description": "walking|transit|driving|cycling"},
			},
			"required": []string{"query", "city", "num_locations", "duration", "transport"},
		},
	}
}

type createItineraryArgs struct {
	Query        string `json:"query"`
	City         string `json:"city"`
	NumLocations int    `json:"num_locations"`
	Duration     string `json:"duration"`
	NumPeople    int    `json:"num_people"`
	Vibe         string `json:"vibe"`
	Budget       string `json:"budget"`
	Transport    string `json:"transport"`
}

func (t *CreateItineraryTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args createItineraryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, domain.NewError(domain.ErrToolError, "invalid create_itinerary arguments", err)
	}
	if args.NumLocations <= 0 {
		args.NumLocations = 3
	}
	transport := strings.ToLower(strings.TrimSpace(args.Transport))
	speed, ok := meanSpeedKmh[transport]
	if !ok {
		transport = "walking"
		speed = meanSpeedKmh["walking"]
	}

	found, err := t.client.Search(ctx, args.Query, args.City, 0)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Rating > found[j].Rating })
	partial := len(found) < args.NumLocations
	if len(found) > args.NumLocations {
		found = found[:args.NumLocations]
	}
	if len(found) == 0 {
		return domain.Itinerary{Title: itineraryTitle(args.City, args.Vibe), Partial: true}, nil
	}

	ordered := nearestNeighborOrder(found)
	totalMinutes := parseDurationMinutes(args.Duration)

	steps, totalDistanceKm, travelMinutesTotal := buildSteps(ordered, speed)
	stopMinutes := allocateStopMinutes(totalMinutes-travelMinutesTotal, len(steps))
	assignArrivalsAndStays(steps, stopMinutes)

	itinerary := domain.Itinerary{
		Title:            itineraryTitle(args.City, args.Vibe),
		Steps:            steps,
		TotalDurationMin: totalMinutes,
		TotalDistanceKm:  totalDistanceKm,
		EstimatedCost:    estimateCost(args.Budget, args.NumPeople, len(steps)),
		Metadata: map[string]any{
			"transport":  transport,
			"num_people": args.NumPeople,
			"vibe":       args.Vibe,
		},
		Partial: partial,
	}
	return itinerary, nil
}

func itineraryTitle(city, vibe string) string {
	if vibe != "" {
		return strings.TrimSpace(vibe + " day in " + city)
	}
	return strings.TrimSpace("Day in " + city)
}

// nearestNeighborOrder orders places via a greedy nearest-neighbor tour
// starting from the highest-rated (first) place.
func nearestNeighborOrder(places []domain.Place) []domain.Place {
	remaining := append([]domain.Place(nil), places...)
	ordered := []domain.Place{remaining[0]}
	remaining = remaining[1:]

	for len(remaining) > 0 {
		cur := ordered[len(ordered)-1]
		bestIdx, bestDist := 0, math.MaxFloat64
		for i, p := range remaining {
			d := haversineKm(cur.Location, p.Location)
			if d < bestDist {
				bestDist, bestIdx = d, i
			}
		}
		ordered = append(ordered, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return ordered
}

func haversineKm(a, b domain.Coordinates) float64 {
	const earthRadiusKm = 6371.0
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180
	dLat, dLon := lat2-lat1, lon2-lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func buildSteps(ordered []domain.Place, speedKmh float64) ([]domain.ItineraryStep, float64, int) {
	steps := make([]domain.ItineraryStep, len(ordered))
	var totalDistanceKm float64
	var travelMinutesTotal int

	for i, p := range ordered {
		step := domain.ItineraryStep{Place: p}
		if i > 0 {
			distKm := haversineKm(ordered[i-1].Location, p.Location)
			travelMin := int(math.Round(distKm / speedKmh * 60))
			step.TravelFromPrevKm = distKm
			step.TravelFromPrevMin = travelMin
			totalDistanceKm += distKm
			travelMinutesTotal += travelMin
		}
		steps[i] = step
	}
	return steps, totalDistanceKm, travelMinutesTotal
}

// allocateStopMinutes distributes the remaining (non-travel) minutes evenly
// across stops, enforcing a 15-minute floor per stop.
func allocateStopMinutes(remaining, numStops int) int {
	if numStops == 0 {
		return 0
	}
	perStop := remaining / numStops
	if perStop < minStopMinutes {
		return minStopMinutes
	}
	return perStop
}

func assignArrivalsAndStays(steps []domain.ItineraryStep, stopMinutes int) {
	offset := 0
	for i := range steps {
		offset += steps[i].TravelFromPrevMin
		steps[i].ArrivalOffsetMin = offset
		steps[i].StayMinutes = stopMinutes
		offset += stopMinutes
	}
}

var numericDurationRe = regexp.MustCompile(`(\d+)\s*(hour|hr|h|minute|min|m)`)

// parseDurationMinutes accepts explicit numeric quantities ("3 hours",
// "90 minutes") and the fixed phrase set from spec.md §4.6.
func parseDurationMinutes(duration string) int {
	d := strings.ToLower(strings.TrimSpace(duration))
	switch {
	case strings.Contains(d, "full day"), strings.Contains(d, "all day"):
		return 8 * 60
	case strings.Contains(d, "evening"):
		return 3 * 60
	case strings.Contains(d, "quick"):
		return 30
	}

	if m := numericDurationRe.FindStringSubmatch(d); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch m[2] {
			case "hour", "hr", "h":
				return n * 60
			default:
				return n
			}
		}
	}
	return 3 * 60
}

func estimateCost(budget string, numPeople, numStops int) float64 {
	if numPeople <= 0 {
		numPeople = 1
	}
	perStopPerPerson := 15.0
	switch strings.ToLower(strings.TrimSpace(budget)) {
	case "low", "cheap", "budget":
		perStopPerPerson = 8.0
	case "high", "luxury", "premium":
		perStopPerPerson = 40.0
	}
	return perStopPerPerson * float64(numPeople) * float64(numStops)
}
