package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/askelund/dagsplan/internal/auth"
	"github.com/askelund/dagsplan/internal/email"
	"github.com/askelund/dagsplan/internal/middleware"
	"github.com/askelund/dagsplan/internal/store"
)

const sessionTTL = 30 * 24 * time.Hour

type AuthHandler struct {
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	loginCodeStore *store.LoginCodeStore
	emailClient    *email.Client
	secureCookies  bool
	logger         *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	lcs *store.LoginCodeStore,
	ec *email.Client,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		sessionStore:   ss,
		loginCodeStore: lcs,
		emailClient:    ec,
		secureCookies:  secureCookies,
		logger:         logger,
	}
}

// Login mails a 6-digit code to the given address. First-time addresses get
// a user record on the spot; this is a self-hosted family app, so open
// registration is the point, not a risk. The response is identical either
// way to avoid leaking which addresses exist.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" || !strings.Contains(addr, "@") {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.userStore.GetByEmail(addr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		if user, err = h.userStore.Create(addr, strings.TrimSpace(req.Name)); err != nil {
			h.logger.Error("create user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	lc, err := h.loginCodeStore.Create(addr)
	if err != nil {
		h.logger.Error("create login code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.emailClient.SendLoginCode(addr, lc.Token); err != nil {
		h.logger.Error("send login code", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "code_sent"})
}

// Verify exchanges a valid code for a session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)
	if addr == "" || code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	lc, err := h.loginCodeStore.Consume(addr, code)
	if err != nil {
		h.logger.Error("consume login code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if lc == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	user, err := h.userStore.GetByEmail(addr)
	if err != nil || user == nil {
		h.logger.Error("verify lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, user)
}

// Logout deletes the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if pc, ok := auth.ParentFromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(pc.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated parent.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
