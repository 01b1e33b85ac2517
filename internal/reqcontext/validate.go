// Package reqcontext validates an inbound request and produces the
// immutable ValidatedContext the rest of the pipeline depends on. Grounded
// on the parse-then-merge shape of the teacher's request-preference
// handling: reject early on malformed input, read durable preferences once,
// merge without letting stored preferences silently override what the
// caller just asked for.
package reqcontext

import (
	"context"

	"github.com/google/uuid"

	"wayfarer/internal/config"
	"wayfarer/internal/domain"
	"wayfarer/internal/persistence"
)

// Validator validates requests against a configured language set and merges
// durable preferences into the resulting context.
type Validator struct {
	cfg   config.Config
	prefs persistence.UserPreferencesStore
}

func New(cfg config.Config, prefs persistence.UserPreferencesStore) *Validator {
	return &Validator{cfg: cfg, prefs: prefs}
}

// Validate checks req and returns an immutable ValidatedContext, or a
// domain.Error with the appropriate error kind.
func (v *Validator) Validate(ctx context.Context, req domain.Request) (domain.ValidatedContext, error) {
	if req.UserID == "" {
		return domain.ValidatedContext{}, domain.NewError(domain.ErrInvalidSession, "user id is required", nil)
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		return domain.ValidatedContext{}, domain.NewError(domain.ErrInvalidSession, "session id must be a UUID", err)
	}
	if req.Location != nil {
		if !validCoordinates(*req.Location) {
			return domain.ValidatedContext{}, domain.NewError(domain.ErrInvalidLocation, "coordinates out of range", nil)
		}
	}

	prefs, err := v.prefs.Get(ctx, req.UserID)
	if err != nil {
		return domain.ValidatedContext{}, domain.NewError(domain.ErrPersistenceFailed, "loading user preferences", err)
	}

	// Resolution order: request-supplied language, then the user's stored
	// preference, then the configured default — the config default only
	// applies when neither the request nor preferences name one.
	lang := req.Language
	if lang == "" {
		lang = prefs.PreferredLanguage
	}
	if lang == "" {
		lang = v.cfg.DefaultLanguage
	}
	if !v.cfg.SupportsLanguage(lang) {
		return domain.ValidatedContext{}, domain.NewError(domain.ErrUnsupportedLanguage, "language not supported: "+lang, nil)
	}

	return domain.ValidatedContext{
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Language:    lang,
		Location:    req.Location,
		Preferences: prefs,
	}, nil
}

func validCoordinates(c domain.Coordinates) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
