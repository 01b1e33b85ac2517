package contextbuilder

import (
	"regexp"
	"strconv"
	"strings"

	"wayfarer/internal/domain"
)

// langRules is the per-language token table ExtractPlanParams dispatches on.
// A language without a table falls back to "en".
type langRules struct {
	durationUnits map[string]string // token -> canonical unit bucket ("hours" or "minutes")
	fullDayWords  []string
	quickWords    []string
	groupWords    []string
	cityNames     []string
	placeTypes    map[string]string // token -> canonical place type
	vibes         map[string]string
	budgets       map[string]string
	transports    map[string]string
}

var rulesByLanguage = map[string]langRules{
	"en": {
		durationUnits: map[string]string{"hour": "hours", "hours": "hours", "hr": "hours", "min": "minutes", "mins": "minutes", "minute": "minutes", "minutes": "minutes"},
		fullDayWords:  []string{"full day", "all day", "whole day"},
		quickWords:    []string{"quick", "short"},
		groupWords:    []string{"people", "person", "party", "group", "friends"},
		cityNames:     []string{"barcelona", "madrid", "valencia", "sevilla", "seville", "bilbao", "granada"},
		placeTypes:    map[string]string{"bar": "bars", "bars": "bars", "restaurant": "restaurants", "restaurants": "restaurants", "cafe": "cafes", "café": "cafes", "cafes": "cafes", "museum": "museums", "museums": "museums", "park": "parks", "parks": "parks", "club": "clubs", "clubs": "clubs"},
		vibes:         map[string]string{"romantic": "romantic", "party": "party", "chill": "chill", "relaxed": "chill", "adventurous": "adventurous", "celebratory": "celebratory", "celebration": "celebratory", "tired": "tired"},
		budgets:       map[string]string{"cheap": "low", "low": "low", "budget": "low", "moderate": "medium", "medium": "medium", "expensive": "high", "luxury": "high", "high": "high"},
		transports:    map[string]string{"walk": "walking", "walking": "walking", "foot": "walking", "drive": "driving", "driving": "driving", "car": "driving", "transit": "transit", "metro": "transit", "bus": "transit", "subway": "transit"},
	},
	"es": {
		durationUnits: map[string]string{"hora": "hours", "horas": "hours", "min": "minutes", "minuto": "minutes", "minutos": "minutes"},
		fullDayWords:  []string{"todo el día", "día completo", "dia completo"},
		quickWords:    []string{"rápido", "rapido", "corto"},
		groupWords:    []string{"personas", "persona", "gente", "grupo", "amigos"},
		cityNames:     []string{"barcelona", "madrid", "valencia", "sevilla", "bilbao", "granada"},
		placeTypes:    map[string]string{"bar": "bars", "bares": "bars", "restaurante": "restaurants", "restaurantes": "restaurants", "cafe": "cafes", "café": "cafes", "cafés": "cafes", "museo": "museums", "museos": "museums", "parque": "parks", "parques": "parks", "club": "clubs", "clubes": "clubs", "discoteca": "clubs"},
		vibes:         map[string]string{"romántico": "romantic", "romantico": "romantic", "fiesta": "party", "tranquilo": "chill", "relajado": "chill", "aventurero": "adventurous", "celebración": "celebratory", "celebracion": "celebratory", "cansado": "tired"},
		budgets:       map[string]string{"barato": "low", "económico": "low", "economico": "low", "moderado": "medium", "caro": "high", "lujo": "high"},
		transports:    map[string]string{"caminando": "walking", "andando": "walking", "a pie": "walking", "coche": "driving", "conduciendo": "driving", "transporte público": "transit", "metro": "transit", "autobús": "transit", "autobus": "transit"},
	},
	"ca": {
		durationUnits: map[string]string{"hora": "hours", "hores": "hours", "min": "minutes", "minut": "minutes", "minuts": "minutes"},
		fullDayWords:  []string{"tot el dia", "dia complet"},
		quickWords:    []string{"ràpid", "rapid", "curt"},
		groupWords:    []string{"persones", "persona", "gent", "grup", "amics"},
		cityNames:     []string{"barcelona", "girona", "tarragona", "lleida", "sitges"},
		placeTypes:    map[string]string{"bar": "bars", "bars": "bars", "restaurant": "restaurants", "restaurants": "restaurants", "cafe": "cafes", "cafè": "cafes", "cafès": "cafes", "museu": "museums", "museus": "museums", "parc": "parks", "parcs": "parks", "club": "clubs", "discoteca": "clubs"},
		vibes:         map[string]string{"romàntic": "romantic", "romantic": "romantic", "festa": "party", "tranquil": "chill", "relaxat": "chill", "aventurer": "adventurous", "celebració": "celebratory", "celebracio": "celebratory", "cansat": "tired"},
		budgets:       map[string]string{"barat": "low", "econòmic": "low", "economic": "low", "moderat": "medium", "car": "high", "luxe": "high"},
		transports:    map[string]string{"caminant": "walking", "a peu": "walking", "cotxe": "driving", "conduint": "driving", "transport públic": "transit", "metro": "transit", "autobús": "transit", "autobus": "transit"},
	},
	"gl": {
		durationUnits: map[string]string{"hora": "hours", "horas": "hours", "min": "minutes", "minuto": "minutes", "minutos": "minutes"},
		fullDayWords:  []string{"todo o día", "todo o dia", "día completo"},
		quickWords:    []string{"rápido", "rapido", "curto"},
		groupWords:    []string{"persoas", "persoa", "xente", "grupo", "amigos"},
		cityNames:     []string{"santiago", "vigo", "coruña", "coruna", "ourense", "lugo", "pontevedra"},
		placeTypes:    map[string]string{"bar": "bars", "bares": "bars", "restaurante": "restaurants", "restaurantes": "restaurants", "cafe": "cafes", "café": "cafes", "museo": "museums", "museos": "museums", "parque": "parks", "parques": "parks", "club": "clubs", "discoteca": "clubs"},
		vibes:         map[string]string{"romántico": "romantic", "romantico": "romantic", "festa": "party", "tranquilo": "chill", "relaxado": "chill", "aventureiro": "adventurous", "celebración": "celebratory", "celebracion": "celebratory", "cansado": "tired"},
		budgets:       map[string]string{"barato": "low", "económico": "low", "economico": "low", "moderado": "medium", "caro": "high", "luxo": "high"},
		transports:    map[string]string{"camiñando": "walking", "a pé": "walking", "coche": "driving", "conducindo": "driving", "transporte público": "transit", "metro": "transit", "autobús": "transit", "autobus": "transit"},
	},
}

var durationNumberRe = regexp.MustCompile(`(\d+)\s*([a-zA-Zà-ÿÀ-ß]+)`)
var groupNumberRe = regexp.MustCompile(`(\d+)\s*([a-zA-Zà-ÿÀ-ß]+)`)

// ExtractPlanParams applies the language-appropriate rule table to query
// and returns whichever slots it could recognize; unrecognized slots are
// left at their zero value.
func ExtractPlanParams(query string, language string) domain.PlanParams {
	rules, ok := rulesByLanguage[language]
	if !ok {
		rules = rulesByLanguage["en"]
	}
	lower := strings.ToLower(query)

	var params domain.PlanParams

	for _, w := range rules.fullDayWords {
		if strings.Contains(lower, w) {
			params.Duration = "full_day"
			break
		}
	}
	if params.Duration == "" {
		for _, w := range rules.quickWords {
			if strings.Contains(lower, w) {
				params.Duration = "30min"
				break
			}
		}
	}
	if params.Duration == "" {
		for _, m := range durationNumberRe.FindAllStringSubmatch(lower, -1) {
			if unit, ok := rules.durationUnits[m[2]]; ok {
				params.Duration = m[1] + unit
				break
			}
		}
	}

	for _, m := range groupNumberRe.FindAllStringSubmatch(lower, -1) {
		if containsAny(m[2], rules.groupWords) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				params.NumPeople = n
				break
			}
		}
	}

	for _, city := range rules.cityNames {
		if strings.Contains(lower, city) {
			params.Cities = append(params.Cities, city)
		}
	}

	for token, canonical := range rules.placeTypes {
		if strings.Contains(lower, token) && !containsString(params.PlaceTypes, canonical) {
			params.PlaceTypes = append(params.PlaceTypes, canonical)
		}
	}

	for token, canonical := range rules.vibes {
		if strings.Contains(lower, token) {
			params.Vibe = canonical
			break
		}
	}

	for token, canonical := range rules.budgets {
		if strings.Contains(lower, token) {
			params.Budget = canonical
			break
		}
	}

	for token, canonical := range rules.transports {
		if strings.Contains(lower, token) {
			params.Transport = canonical
			break
		}
	}

	return params
}

// Merge takes the new value for each scalar slot when present, else keeps
// existing; list slots union without duplicates. This is idempotent:
// Merge(p, p) == p.
func Merge(existing, next domain.PlanParams) domain.PlanParams {
	out := existing
	if next.Duration != "" {
		out.Duration = next.Duration
	}
	if next.NumPeople > 0 {
		out.NumPeople = next.NumPeople
	}
	out.Cities = unionStrings(existing.Cities, next.Cities)
	out.PlaceTypes = unionStrings(existing.PlaceTypes, next.PlaceTypes)
	if next.Vibe != "" {
		out.Vibe = next.Vibe
	}
	if next.Budget != "" {
		out.Budget = next.Budget
	}
	if next.Transport != "" {
		out.Transport = next.Transport
	}
	return out
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(c, s) || strings.Contains(s, c) {
			return true
		}
	}
	return false
}

// PlanParamsMetadataKey is the ConversationTurn.ExtraMetadata key a
// persisted turn's plan parameters live under.
const PlanParamsMetadataKey = "plan_params"

// ExtractPlanState recovers the most recently persisted plan parameters
// from turn metadata (spec.md §5: plan state is never held in process
// memory across requests, only rebuilt from durable turn metadata).
func ExtractPlanState(turns []domain.ConversationTurn) domain.PlanParams {
	for i := len(turns) - 1; i >= 0; i-- {
		raw, ok := turns[i].ExtraMetadata[PlanParamsMetadataKey]
		if !ok {
			continue
		}
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		return planParamsFromMap(m)
	}
	return domain.PlanParams{}
}

func planParamsFromMap(m map[string]any) domain.PlanParams {
	p := domain.PlanParams{}
	if v, ok := m["duration"].(string); ok {
		p.Duration = v
	}
	p.NumPeople = toInt(m["num_people"])
	if v, ok := m["cities"].([]any); ok {
		p.Cities = toStringSlice(v)
	} else if v, ok := m["cities"].([]string); ok {
		p.Cities = v
	}
	if v, ok := m["place_types"].([]any); ok {
		p.PlaceTypes = toStringSlice(v)
	} else if v, ok := m["place_types"].([]string); ok {
		p.PlaceTypes = v
	}
	if v, ok := m["vibe"].(string); ok {
		p.Vibe = v
	}
	if v, ok := m["budget"].(string); ok {
		p.Budget = v
	}
	if v, ok := m["transport"].(string); ok {
		p.Transport = v
	}
	return p
}

// toInt handles both the in-memory store (Go int survives untouched) and
// the Postgres JSONB path (decodes through encoding/json into float64).
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toStringSlice(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// PlanParamsToMetadata renders p into the plain map ExtraMetadata stores,
// the mirror image of planParamsFromMap so a round trip through JSON
// persistence recovers an equal value.
func PlanParamsToMetadata(p domain.PlanParams) map[string]any {
	return map[string]any{
		"duration":    p.Duration,
		"num_people":  p.NumPeople,
		"cities":      p.Cities,
		"place_types": p.PlaceTypes,
		"vibe":        p.Vibe,
		"budget":      p.Budget,
		"transport":   p.Transport,
	}
}
