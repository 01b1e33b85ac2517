package i18n

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"wayfarer/internal/domain"
)

func TestMessage_ReturnsLocalizedText(t *testing.T) {
	es := Message(domain.ErrInvalidSession, "es")
	en := Message(domain.ErrInvalidSession, "en")
	assert.NotEqual(t, es, en)
	assert.NotEmpty(t, es)
}

func TestMessage_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, Message(domain.ErrTimeout, "en"), Message(domain.ErrTimeout, "fr"))
}

func TestMessage_AllFourLanguagesPresentForEveryKind(t *testing.T) {
	for kind, entries := range catalog {
		for _, lang := range []string{"es", "en", "ca", "gl"} {
			assert.NotEmptyf(t, entries[lang], "kind %s missing language %s", kind, lang)
		}
	}
}

func TestLocalize_NeverLeaksCauseMessage(t *testing.T) {
	cause := errors.New("pq: connection refused to internal-db-7.prod.svc")
	wrapped := domain.NewError(domain.ErrPersistenceFailed, "persist failed", cause)

	payload := Localize(wrapped, "es")
	assert.Equal(t, string(domain.ErrPersistenceFailed), payload.Error)
	assert.NotContains(t, payload.Message, "internal-db-7")
}
