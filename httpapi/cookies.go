package httpapi

import (
	"net/http"
	"strings"
	"time"
)

const (
	accessCookie  = "authd_access_token"
	refreshCookie = "authd_refresh_token"
)

// CookieManager writes and clears the session cookies. Both cookies are
// HttpOnly; the refresh token additionally never needs to be readable
// by anything but this service.
type CookieManager struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(domain string, secure bool, sameSite string) *CookieManager {
	ss := http.SameSiteLaxMode
	switch strings.ToLower(sameSite) {
	case "none":
		ss = http.SameSiteNoneMode
	case "strict":
		ss = http.SameSiteStrictMode
	}
	return &CookieManager{Domain: domain, Secure: secure, SameSite: ss}
}

func (c *CookieManager) set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// SetTokenPair installs both session cookies. Each cookie's lifetime
// matches its token's TTL.
func (c *CookieManager) SetTokenPair(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	c.set(w, accessCookie, accessToken, accessTTL)
	c.set(w, refreshCookie, refreshToken, refreshTTL)
}

// ClearTokenPair expires both session cookies.
func (c *CookieManager) ClearTokenPair(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
}

func readCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
