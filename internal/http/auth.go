package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"housefin/internal/core"
	applog "housefin/internal/log"
)

type contextKey string

const (
	userContextKey contextKey = "user"

	// CookieName holds the session token for browser clients.
	CookieName = "access_token"
)

// UserFromContext returns the authenticated user stored by the auth middleware.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// tokenFromRequest reads the bearer token from the Authorization header,
// falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(strings.TrimPrefix(c.Value, "Bearer "))
	}
	return ""
}

// wantsJSON reports whether the caller is a programmatic client. Those get
// 401 responses instead of login redirects.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// requireUser authenticates the request. HTML clients without a valid
// session are redirected to /login, JSON clients get 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token := tokenFromRequest(r)
		if token == "" {
			s.unauthenticated(w, r, false)
			return
		}

		user, err := s.accounts.UserFromToken(ctx, token)
		if err != nil {
			if errors.Is(err, core.ErrUnauthenticated) {
				applog.FromContext(ctx).WithComponent(applog.ComponentAuth).InfoContext(ctx,
					"Rejected session token",
					applog.FieldPath, r.URL.Path,
					applog.FieldError, err.Error(),
					applog.FieldErrorType, applog.ErrorTypeAuth)
				s.unauthenticated(w, r, true)
				return
			}
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(ctx, user)))
	})
}

// optionalUser resolves the session when present and never rejects.
func (s *Server) optionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := tokenFromRequest(r); token != "" {
			if user, err := s.accounts.UserFromToken(r.Context(), token); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request, stale bool) {
	if stale {
		s.clearSessionCookie(w)
	}
	if wantsJSON(r) {
		UnauthorizedError("not authenticated").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser returns the user set by requireUser. Handlers behind
// requireUser can rely on it being present.
func currentUser(r *http.Request) core.User {
	u, _ := UserFromContext(r.Context())
	return u
}

func userRef(r *http.Request) *core.User {
	if u, ok := UserFromContext(r.Context()); ok {
		return &u
	}
	return nil
}
