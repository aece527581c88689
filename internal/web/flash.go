package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/web/views"
)

const flashCookieName = "flash"

// setFlash stores a notice for the next page render.
func setFlash(w http.ResponseWriter, n views.Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending notice, if any, and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) *views.Notice {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var n views.Notice
	if err := json.Unmarshal(data, &n); err != nil || n.Text == "" {
		return nil
	}
	return &n
}
