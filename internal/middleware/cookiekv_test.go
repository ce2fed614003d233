package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askelund/dagsplan/internal/pairing"
)

func TestCookieKVReadYourWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	kv := CookieKV(rec, httptest.NewRequest("GET", "/", nil))

	kv.Set(pairing.KeyDeviceChildID, "7")
	got, ok := kv.Get(pairing.KeyDeviceChildID)
	if !ok || got != "7" {
		t.Fatalf("Get after Set = %q, %v", got, ok)
	}

	kv.Delete(pairing.KeyDeviceChildID)
	if _, ok := kv.Get(pairing.KeyDeviceChildID); ok {
		t.Fatal("Get after Delete should miss")
	}
}

func TestCookieKVRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	kv := CookieKV(rec, httptest.NewRequest("GET", "/", nil))

	// JSON survives cookie encoding via base64
	marker := `{"id":7,"display_name":"Alma Å","avatar":"fox","parent_id":1}`
	kv.Set(pairing.KeyChildSession, marker)

	// Replay the response cookies on a fresh request
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	kv2 := CookieKV(httptest.NewRecorder(), req)

	got, ok := kv2.Get(pairing.KeyChildSession)
	if !ok || got != marker {
		t.Fatalf("round trip = %q, %v", got, ok)
	}
}

func TestCookieKVLifetimes(t *testing.T) {
	rec := httptest.NewRecorder()
	kv := CookieKV(rec, httptest.NewRequest("GET", "/", nil))

	kv.Set(pairing.KeyDeviceChildID, "7")
	kv.Set(pairing.KeyChildSession, "marker")

	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case pairing.KeyDeviceChildID:
			if c.MaxAge <= 0 {
				t.Errorf("device cookie MaxAge = %d, want long-lived", c.MaxAge)
			}
		case pairing.KeyChildSession:
			if c.MaxAge != 0 {
				t.Errorf("session cookie MaxAge = %d, want browser-session", c.MaxAge)
			}
		}
	}
}
