package middleware

import (
	"encoding/base64"
	"net/http"

	"github.com/askelund/dagsplan/internal/pairing"
)

// ten years, in seconds
const deviceCookieMaxAge = 10 * 365 * 24 * 60 * 60

// cookieKV backs the pairing gate's key-value storage with cookies on the
// current request/response pair. Device keys get a long-lived cookie; the
// child session key gets a session cookie that dies with the browser
// session, mirroring the marker's session-only scope. Values are
// base64-encoded so JSON survives cookie encoding rules.
type cookieKV struct {
	w http.ResponseWriter
	r *http.Request
	// overlay holds values written during this request, so reads observe
	// writes before the response cookies ever reach the client
	overlay map[string]*string
}

// CookieKV returns device-local storage for the pairing gate, backed by
// cookies on this request.
func CookieKV(w http.ResponseWriter, r *http.Request) pairing.KV {
	return &cookieKV{w: w, r: r, overlay: make(map[string]*string)}
}

func (c *cookieKV) Get(key string) (string, bool) {
	if v, ok := c.overlay[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func (c *cookieKV) Set(key, value string) {
	c.overlay[key] = &value

	cookie := &http.Cookie{
		Name:     key,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(value)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if key != pairing.KeyChildSession {
		cookie.MaxAge = deviceCookieMaxAge
	}
	http.SetCookie(c.w, cookie)
}

func (c *cookieKV) Delete(key string) {
	c.overlay[key] = nil

	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
