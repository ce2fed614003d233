package handler

import (
	"log/slog"
	"net/http"

	"github.com/askelund/dagsplan/internal/middleware"
	"github.com/askelund/dagsplan/internal/pairing"
	"github.com/askelund/dagsplan/internal/store"
)

// EntryHandler answers the app's first question on load: whose screen is
// this? A paired device belongs to the child regardless of any parent
// session, so a parent visiting the family tablet is not dropped into the
// dashboard.
type EntryHandler struct {
	childStore   *store.ChildStore
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewEntryHandler(cs *store.ChildStore, ss *store.SessionStore, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{childStore: cs, sessionStore: ss, logger: logger}
}

func (h *EntryHandler) Entry(w http.ResponseWriter, r *http.Request) {
	gate := pairing.NewGate(middleware.CookieKV(w, r), h.childStore)

	switch gate.State() {
	case pairing.SessionActive:
		writeJSON(w, http.StatusOK, map[string]string{"view": "child_home"})
		return
	case pairing.Paired:
		writeJSON(w, http.StatusOK, map[string]string{"view": "child_login"})
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sess, err := h.sessionStore.GetByToken(cookie.Value)
		if err != nil {
			h.logger.Error("entry session lookup", "error", err)
		}
		if sess != nil {
			writeJSON(w, http.StatusOK, map[string]string{"view": "dashboard"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"view": "welcome"})
}
