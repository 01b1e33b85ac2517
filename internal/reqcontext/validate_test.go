package reqcontext

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/config"
	"wayfarer/internal/domain"
	"wayfarer/internal/persistence/store"
)

func testValidator() *Validator {
	cfg := config.Default()
	return New(cfg, store.NewUserPreferencesStore(nil))
}

func TestValidate_RejectsEmptyUserID(t *testing.T) {
	v := testValidator()
	_, err := v.Validate(context.Background(), domain.Request{
		SessionID: uuid.NewString(), Language: "en",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidSession, domain.KindOf(err))
}

func TestValidate_RejectsNonUUIDSession(t *testing.T) {
	v := testValidator()
	_, err := v.Validate(context.Background(), domain.Request{
		UserID: "u1", SessionID: "not-a-uuid", Language: "en",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidSession, domain.KindOf(err))
}

func TestValidate_RejectsUnsupportedLanguage(t *testing.T) {
	v := testValidator()
	_, err := v.Validate(context.Background(), domain.Request{
		UserID: "u1", SessionID: uuid.NewString(), Language: "fr",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrUnsupportedLanguage, domain.KindOf(err))
}

func TestValidate_RejectsOutOfRangeLocation(t *testing.T) {
	v := testValidator()
	_, err := v.Validate(context.Background(), domain.Request{
		UserID: "u1", SessionID: uuid.NewString(), Language: "en",
		Location: &domain.Coordinates{Lat: 200, Lon: 0},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrInvalidLocation, domain.KindOf(err))
}

func TestValidate_SucceedsAndMergesPreferences(t *testing.T) {
	v := testValidator()
	ctx := context.Background()
	vc, err := v.Validate(ctx, domain.Request{
		UserID: "u1", SessionID: uuid.NewString(), Language: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, "es", vc.Language)
	assert.Equal(t, "u1", vc.Preferences.UserID)
}

func TestValidate_RequestLanguageWinsOverPreference(t *testing.T) {
	cfg := config.Default()
	prefStore := store.NewUserPreferencesStore(nil)
	require.NoError(t, prefStore.Upsert(context.Background(), domain.UserPreferences{
		UserID: "u1", PreferredLanguage: "ca",
	}))
	v := New(cfg, prefStore)

	vc, err := v.Validate(context.Background(), domain.Request{
		UserID: "u1", SessionID: uuid.NewString(), Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", vc.Language)
}

func TestValidate_FallsBackToStoredPreferenceWhenRequestOmitsLanguage(t *testing.T) {
	cfg := config.Default()
	prefStore := store.NewUserPreferencesStore(nil)
	require.NoError(t, prefStore.Upsert(context.Background(), domain.UserPreferences{
		UserID: "u1", PreferredLanguage: "gl",
	}))
	v := New(cfg, prefStore)

	vc, err := v.Validate(context.Background(), domain.Request{
		UserID: "u1", SessionID: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "gl", vc.Language)
}
