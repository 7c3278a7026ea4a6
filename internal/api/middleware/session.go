package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/newthinker/tradeboard/internal/api/response"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/core"
)

// SessionCookie names the cookie holding the dashboard session id.
const SessionCookie = "tb_session"

// cookieMaxAge outlives any session so an expired session is reopened under
// the same id and keeps its stored preferences.
const cookieMaxAge = 365 * 24 * time.Hour

// SessionOpener resolves a session id to an open session. *app.App implements it.
type SessionOpener interface {
	Open(id string) (*app.Session, bool, error)
}

type sessionKey struct{}

// Sessions attaches the caller's dashboard session to the request context,
// creating one (and setting the cookie) on first visit.
func Sessions(opener SessionOpener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}

			s, _, err := opener.Open(id)
			if err != nil {
				response.Error(w, http.StatusServiceUnavailable, err)
				return
			}
			if s.ID() != id {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    s.ID(),
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   r.TLS != nil,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *app.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached by Sessions.
func SessionFrom(ctx context.Context) (*app.Session, error) {
	s, ok := ctx.Value(sessionKey{}).(*app.Session)
	if !ok || s == nil {
		return nil, core.ErrSessionNotFound
	}
	return s, nil
}
