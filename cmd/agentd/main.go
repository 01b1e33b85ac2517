package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"wayfarer/internal/cache"
	"wayfarer/internal/config"
	"wayfarer/internal/domain"
	"wayfarer/internal/i18n"
	"wayfarer/internal/intent"
	"wayfarer/internal/llmprovider"
	"wayfarer/internal/llmprovider/anthropic"
	"wayfarer/internal/llmprovider/gemini"
	"wayfarer/internal/llmprovider/openai"
	"wayfarer/internal/memory"
	"wayfarer/internal/metrics"
	"wayfarer/internal/observability"
	"wayfarer/internal/orchestrator"
	"wayfarer/internal/persistence/store"
	"wayfarer/internal/places"
	"wayfarer/internal/reasonact"
	"wayfarer/internal/reqcontext"
	"wayfarer/internal/router"
	"wayfarer/internal/tools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load(os.Getenv("WAYFARER_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)

	ctx := context.Background()
	shutdown, err := observability.InitOTel(ctx, cfg.Observability)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdown = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdown(context.Background()) }()

	httpClient := observability.NewHTTPClient(nil)

	pool := mustPostgresPool(ctx, cfg.Postgres.DSN)
	convos := store.NewConversationStore(pool)
	prefs := store.NewUserPreferencesStore(pool)
	metricsStore := store.NewMetricsStore(pool)
	for name, init := range map[string]func(context.Context) error{
		"conversation_store": convos.Init,
		"preferences_store":  prefs.Init,
		"metrics_store":      metricsStore.Init,
	} {
		if err := init(ctx); err != nil {
			log.Fatal().Err(err).Str("store", name).Msg("persistence init failed")
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis cache init failed")
	}
	var c cache.Cache = redisCache
	if redisCache == nil {
		c = cache.NewInMemoryCache()
		log.Info().Msg("redis disabled, using in-memory cache")
	}

	placesTTL := time.Duration(cfg.CacheTTL.PlacesSeconds) * time.Second
	placesClient := places.New(cfg.Places.BaseURL, cfg.Places.Timeout(), c, placesTTL)

	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchPlaces(placesClient))
	registry.Register(tools.NewGetPlaceDetails(placesClient))
	registry.Register(tools.NewCheckOpeningHours(placesClient))
	registry.Register(tools.NewCreateItinerary(placesClient))

	rawProviders := map[string]llmprovider.Provider{}
	if cfg.AnthropicAPIKey != "" {
		rawProviders["anthropic"] = anthropic.New(cfg.AnthropicAPIKey, "", "", httpClient)
	}
	if cfg.OpenAIAPIKey != "" {
		rawProviders["openai"] = openai.New(cfg.OpenAIAPIKey, "", "", httpClient)
	}
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := gemini.New(ctx, cfg.GeminiAPIKey, "", "", httpClient)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini client init failed")
		}
		rawProviders["gemini"] = geminiClient
	}
	if len(rawProviders) == 0 {
		log.Fatal().Msg("no model provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY")
	}

	providers := orchestrator.ProviderSet{}
	for name, p := range rawProviders {
		providers[name] = reasonact.Bind(p)
	}

	classifierModel := cfg.Models["cheap_conversational"]
	classifierProvider, ok := rawProviders[classifierModel.Provider]
	if !ok {
		log.Fatal().Str("provider", classifierModel.Provider).Msg("cheap_conversational model's provider is not configured")
	}
	intentTTL := time.Duration(cfg.CacheTTL.IntentSeconds) * time.Second
	classifier := intent.New(classifierProvider, classifierModel.Model, c, intentTTL)

	pipeline := orchestrator.New(
		cfg,
		reqcontext.New(cfg, prefs),
		memory.New(convos, c, cfg.Memory),
		classifier,
		router.New(cfg.Models),
		registry,
		providers,
		convos,
		metrics.New(metricsStore),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { fmt.Fprintln(w, "ok") })
	mux.HandleFunc("/agent/query", handleQuery(pipeline))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info().Str("addr", addr).Msg("wayfarer agentd listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// handleQuery is the thin HTTP adapter over Pipeline.Handle: decode a
// domain.Request, run the pipeline, encode a domain.Response or a localized
// error payload.
func handleQuery(pipeline *orchestrator.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req domain.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		resp, err := pipeline.Handle(r.Context(), req)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			lang := req.Language
			if lang == "" {
				lang = "en"
			}
			payload := i18n.Localize(err, lang)
			w.WriteHeader(statusFor(domain.KindOf(err)))
			_ = json.NewEncoder(w).Encode(payload)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrInvalidSession, domain.ErrUnsupportedLanguage, domain.ErrInvalidLocation:
		return http.StatusBadRequest
	case domain.ErrTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrOverloaded:
		return http.StatusServiceUnavailable
	case domain.ErrCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// mustPostgresPool dials dsn when set; an empty DSN selects the in-memory
// persistence adapters instead (store.New*Store's nil-pool convention), the
// same way local development and CI run without a database.
func mustPostgresPool(ctx context.Context, dsn string) *pgxpool.Pool {
	if dsn == "" {
		log.Info().Msg("postgres dsn not set, using in-memory persistence")
		return nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool init failed")
	}
	return pool
}
