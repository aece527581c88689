package web

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	sessionCookieName = "session_id"
	sessionCookieAge  = 365 * 24 * 60 * 60
)

// RequestIDMiddleware echoes the request ID assigned by middleware.RequestID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// cookieStore persists the session identifier in the session_id cookie.
type cookieStore struct {
	r      *http.Request
	w      http.ResponseWriter
	secure bool
}

func (c cookieStore) Load() (session.ID, error) {
	cookie, err := c.r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", session.ErrNotFound
	}
	return session.Parse(cookie.Value)
}

func (c cookieStore) Save(id session.ID) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id.String(),
		Path:     "/",
		MaxAge:   sessionCookieAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SessionMiddleware resolves the shopper's session from its cookie, issuing a
// new one when the cookie is missing or invalid.
func SessionMiddleware(secure bool, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := session.Resolve(cookieStore{r: r, w: w, secure: secure})
			if err != nil {
				log.Error("resolve session", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "internal_error", "session unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}

func getSessionID(r *http.Request) (session.ID, bool) {
	return session.FromContext(r.Context())
}
