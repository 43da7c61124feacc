package handler

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	// SessionCookie holds the cart session ID in browsers.
	SessionCookie = "agrihub_cart"
	// SessionHeader carries the cart session ID for non-browser clients.
	SessionHeader = "X-Cart-Session"
)

// sessionID returns the caller's cart session, reading the cookie first and
// then the header. A missing or malformed ID is replaced with a new UUID.
// The resolved ID is always echoed back so clients can keep using it.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	if id == "" {
		id = r.Header.Get(SessionHeader)
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if h.sessionTTL > 0 {
		cookie.MaxAge = int(h.sessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
	w.Header().Set(SessionHeader, id)
	return id
}
