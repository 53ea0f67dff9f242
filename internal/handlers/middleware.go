package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dentaldesk/clinic/internal/sessions"
)

// SessionCookie is the name of the HttpOnly cookie carrying the opaque
// session token.
const SessionCookie = "clinic_session"

// SessionStore is the slice of the session layer the handlers use; the Redis
// implementation lives in internal/sessions.
type SessionStore interface {
	Create(ctx context.Context, sess sessions.Session) (string, error)
	Get(ctx context.Context, token string) (sessions.Session, error)
	Delete(ctx context.Context, token string) error
	TTL() time.Duration
}

// currentSession resolves the request's session cookie against the store.
// Both a missing cookie and a dead token come back as sessions.ErrNotFound so
// callers have a single unauthenticated path.
func currentSession(r *http.Request, store SessionStore) (sessions.Session, string, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return sessions.Session{}, "", sessions.ErrNotFound
	}
	sess, err := store.Get(r.Context(), c.Value)
	if err != nil {
		return sessions.Session{}, "", err
	}
	return sess, c.Value, nil
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// stringify renders a loosely-typed JSON field the way browsers actually send
// it: select values arrive as strings, but some clients post numbers.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// idPresent reports whether a loosely-typed id field was supplied at all.
// Absent, null, empty string and zero all count as missing.
func idPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}

// parseID coerces a loosely-typed id field to a positive int64.
func parseID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t <= 0 {
			return 0, false
		}
		return int64(t), true
	case string:
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
