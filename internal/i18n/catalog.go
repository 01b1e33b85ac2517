// Package i18n is a small embedded-map message catalog covering the error
// kinds in spec.md §7 across es/en/ca/gl. It is deliberately not a full
// translation-management system — out of scope per spec.md — but the
// ambient requirement that user-visible errors are localized still needs a
// concrete, testable seam.
package i18n

import "wayfarer/internal/domain"

var catalog = map[domain.ErrorKind]map[string]string{
	domain.ErrInvalidSession: {
		"en": "Your session looks invalid. Please start a new conversation.",
		"es": "Tu sesión no es válida. Por favor, inicia una nueva conversación.",
		"ca": "La teva sessió no és vàlida. Si us plau, inicia una nova conversa.",
		"gl": "A túa sesión non é válida. Por favor, inicia unha nova conversa.",
	},
	domain.ErrUnsupportedLanguage: {
		"en": "Sorry, that language isn't supported yet.",
		"es": "Lo sentimos, ese idioma aún no está disponible.",
		"ca": "Ho sentim, aquest idioma encara no està disponible.",
		"gl": "Sentímolo, ese idioma aínda non está dispoñible.",
	},
	domain.ErrInvalidLocation: {
		"en": "The location you provided doesn't look right.",
		"es": "La ubicación que proporcionaste no parece correcta.",
		"ca": "La ubicació que has proporcionat no sembla correcta.",
		"gl": "A localización que proporcionaches non parece correcta.",
	},
	domain.ErrMemoryUnavailable: {
		"en": "We couldn't load your conversation history right now. Please try again.",
		"es": "No pudimos cargar tu historial de conversación ahora mismo. Inténtalo de nuevo.",
		"ca": "No hem pogut carregar el teu historial de conversa ara mateix. Torna-ho a provar.",
		"gl": "Non puidemos cargar o teu historial de conversa agora mesmo. Téntao de novo.",
	},
	domain.ErrModelError: {
		"en": "Something went wrong while thinking about your request. Please try again.",
		"es": "Algo salió mal al procesar tu solicitud. Inténtalo de nuevo.",
		"ca": "Alguna cosa ha fallat en processar la teva sol·licitud. Torna-ho a provar.",
		"gl": "Algo fallou mentres procesabamos a túa solicitude. Téntao de novo.",
	},
	domain.ErrTimeout: {
		"en": "That took too long to answer. Please try again.",
		"es": "Tardamos demasiado en responder. Inténtalo de nuevo.",
		"ca": "Hem trigat massa a respondre. Torna-ho a provar.",
		"gl": "Tardamos demasiado en responder. Téntao de novo.",
	},
	domain.ErrCancelled: {
		"en": "Your request was cancelled.",
		"es": "Tu solicitud fue cancelada.",
		"ca": "La teva sol·licitud ha estat cancel·lada.",
		"gl": "A túa solicitude foi cancelada.",
	},
	domain.ErrOverloaded: {
		"en": "We're a bit busy right now. Please try again shortly.",
		"es": "Estamos algo saturados ahora mismo. Inténtalo de nuevo en un momento.",
		"ca": "Estem una mica saturats ara mateix. Torna-ho a provar d'aquí poc.",
		"gl": "Estamos un pouco saturados agora mesmo. Téntao de novo nun momento.",
	},
	domain.ErrPersistenceFailed: {
		"en": "We answered, but couldn't save this exchange. Your next message may not remember it.",
		"es": "Respondimos, pero no pudimos guardar este intercambio. Puede que tu próximo mensaje no lo recuerde.",
		"ca": "Hem respost, però no hem pogut desar aquest intercanvi. És possible que el teu pròxim missatge no el recordi.",
		"gl": "Respondemos, pero non puidemos gardar este intercambio. É posible que a túa seguinte mensaxe non o recorde.",
	},
}

const defaultLanguage = "en"

// Message returns the localized message for kind in language, falling back
// to English when the language is unrecognized or the kind has no entry.
func Message(kind domain.ErrorKind, language string) string {
	entries, ok := catalog[kind]
	if !ok {
		return "An unexpected error occurred."
	}
	if msg, ok := entries[language]; ok {
		return msg
	}
	return entries[defaultLanguage]
}

// ErrorPayload is the user-visible failure shape of spec.md §7: it never
// leaks internal identifiers or stack content.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Localize builds the structured error object for err in language.
func Localize(err error, language string) ErrorPayload {
	kind := domain.KindOf(err)
	return ErrorPayload{Error: string(kind), Message: Message(kind, language)}
}
