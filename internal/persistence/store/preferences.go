package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"wayfarer/internal/domain"
	"wayfarer/internal/persistence"
)

// NewUserPreferencesStore returns a Postgres-backed store when pool is
// non-nil, otherwise an in-memory one.
func NewUserPreferencesStore(pool *pgxpool.Pool) persistence.UserPreferencesStore {
	if pool == nil {
		return &memPreferencesStore{m: make(map[string]domain.UserPreferences)}
	}
	return &pgPreferencesStore{pool: pool}
}

type memPreferencesStore struct {
	mu sync.RWMutex
	m  map[string]domain.UserPreferences
}

func (s *memPreferencesStore) Init(ctx context.Context) error { return nil }

func (s *memPreferencesStore) Get(ctx context.Context, userID string) (domain.UserPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.m[userID]; ok {
		return p, nil
	}
	return domain.UserPreferences{UserID: userID, PreferredLanguage: "en"}, nil
}

func (s *memPreferencesStore) Upsert(ctx context.Context, prefs domain.UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[prefs.UserID] = prefs
	return nil
}

type pgPreferencesStore struct {
	pool *pgxpool.Pool
}

func (s *pgPreferencesStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id TEXT PRIMARY KEY,
    preferred_language TEXT NOT NULL DEFAULT 'en',
    preferred_model TEXT NOT NULL DEFAULT '',
    budget_mode BOOLEAN NOT NULL DEFAULT FALSE,
    favorites JSONB NOT NULL DEFAULT '{}'::jsonb
);
`)
	return err
}

func (s *pgPreferencesStore) Get(ctx context.Context, userID string) (domain.UserPreferences, error) {
	var p domain.UserPreferences
	p.UserID = userID
	var favorites []byte
	err := s.pool.QueryRow(ctx, `
SELECT preferred_language, preferred_model, budget_mode, favorites
FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&p.PreferredLanguage, &p.PreferredModel, &p.BudgetMode, &favorites)
	if err != nil {
		return domain.UserPreferences{UserID: userID, PreferredLanguage: "en"}, nil
	}
	if len(favorites) > 0 {
		if err := json.Unmarshal(favorites, &p.Favorites); err != nil {
			return domain.UserPreferences{}, err
		}
	}
	return p, nil
}

func (s *pgPreferencesStore) Upsert(ctx context.Context, prefs domain.UserPreferences) error {
	favorites, err := json.Marshal(prefs.Favorites)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO user_preferences (user_id, preferred_language, preferred_model, budget_mode, favorites)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    preferred_language = EXCLUDED.preferred_language,
    preferred_model = EXCLUDED.preferred_model,
    budget_mode = EXCLUDED.budget_mode,
    favorites = EXCLUDED.favorites`,
		prefs.UserID, prefs.PreferredLanguage, prefs.PreferredModel, prefs.BudgetMode, favorites)
	return err
}
