package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/askelund/dagsplan/internal/auth"
	"github.com/askelund/dagsplan/internal/pairing"
	"github.com/askelund/dagsplan/internal/store"
)

// SessionCookieName is the parent session cookie.
const SessionCookieName = "dagsplan_session"

// RequireParent validates the parent session cookie and populates the
// parent context. Unauthenticated requests get a 401; the client routes
// back to the welcome screen.
func RequireParent(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			pc := auth.ParentContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}

			ctx := auth.WithParent(r.Context(), pc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireChildSession requires an active child session marker (set by a
// successful PIN entry) and populates the child context from it.
func RequireChildSession(children *store.ChildStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate := pairing.NewGate(CookieKV(w, r), children)
			marker, ok := gate.Session()
			if !ok || gate.State() != pairing.SessionActive {
				unauthorized(w)
				return
			}

			cc := auth.ChildContext{
				ChildID:  marker.ID,
				ParentID: marker.ParentID,
			}

			ctx := auth.WithChild(r.Context(), cc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"})
}
