package session

import (
	"net/http"
	"time"
)

const (
	CookieName    = "clinic_session"
	CookieMaxAge  = 7 * 24 * time.Hour
	cookiePathAll = "/"
)

// NewCookie creates the http-only cookie carrying the signed session token.
func NewCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     cookiePathAll,
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie creates a cookie that removes the session from the browser.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     cookiePathAll,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
