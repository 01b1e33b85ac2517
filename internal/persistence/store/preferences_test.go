package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/domain"
)

func TestMemPreferencesStore_DefaultThenUpsert(t *testing.T) {
	s := NewUserPreferencesStore(nil)
	ctx := context.Background()

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "en", got.PreferredLanguage)

	require.NoError(t, s.Upsert(ctx, domain.UserPreferences{
		UserID:            "user-1",
		PreferredLanguage: "es",
		BudgetMode:        true,
		Favorites:         map[string]string{"place-1": "loved it"},
	}))

	got, err = s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "es", got.PreferredLanguage)
	assert.True(t, got.BudgetMode)
	assert.Equal(t, "loved it", got.Favorites["place-1"])
}
