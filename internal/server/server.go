package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/askelund/dagsplan/internal/email"
	"github.com/askelund/dagsplan/internal/handler"
	"github.com/askelund/dagsplan/internal/ledger"
	"github.com/askelund/dagsplan/internal/media"
	"github.com/askelund/dagsplan/internal/metrics"
	"github.com/askelund/dagsplan/internal/middleware"
	"github.com/askelund/dagsplan/internal/store"
	ws "github.com/askelund/dagsplan/internal/websocket"
)

// Config holds the server-level switches main reads from the environment.
type Config struct {
	SecureCookies bool
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	entryH       *handler.EntryHandler
	childH       *handler.ChildHandler
	activityH    *handler.ActivityHandler
	rewardH      *handler.RewardHandler
	deviceH      *handler.DeviceHandler
	mediaH       *handler.MediaHandler
	sessionStore *store.SessionStore
	childStore   *store.ChildStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, mediaStore *media.Store, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	loginCodeStore := store.NewLoginCodeStore(db)
	childStore := store.NewChildStore(db)
	activityStore := store.NewActivityStore(db)
	rewardStore := store.NewRewardStore(db)

	ledgerSvc := ledger.New(db, emailClient, logger.With("component", "ledger"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, loginCodeStore, emailClient, cfg.SecureCookies, logger.With("component", "auth")),
		entryH:       handler.NewEntryHandler(childStore, sessionStore, logger.With("component", "entry")),
		childH:       handler.NewChildHandler(childStore, hub, logger.With("component", "child")),
		activityH:    handler.NewActivityHandler(activityStore, childStore, hub, logger.With("component", "activity")),
		rewardH:      handler.NewRewardHandler(rewardStore, childStore, hub, logger.With("component", "reward")),
		deviceH:      handler.NewDeviceHandler(childStore, activityStore, rewardStore, sessionStore, ledgerSvc, hub, cfg.SecureCookies, logger.With("component", "device")),
		mediaH:       handler.NewMediaHandler(mediaStore, logger.With("component", "media")),
		sessionStore: sessionStore,
		childStore:   childStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	requireParent := middleware.RequireParent(s.sessionStore)
	requireChild := middleware.RequireChildSession(s.childStore)
	parent := func(h http.HandlerFunc) http.Handler { return requireParent(h) }
	child := func(h http.HandlerFunc) http.Handler { return requireChild(h) }

	// Public routes
	mux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /auth/verify", s.rateLimitedHandler(s.authH.Verify))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/entry", s.entryH.Entry)

	// Device gate routes: authenticated by the pairing cookies themselves.
	// PIN entry shares the login rate limit to damp guessing.
	mux.HandleFunc("GET /api/device", s.deviceH.Status)
	mux.HandleFunc("POST /api/device/session", s.rateLimitedHandler(s.deviceH.EnterPIN))
	mux.HandleFunc("DELETE /api/device/session", s.deviceH.Logout)
	mux.HandleFunc("DELETE /api/device", s.deviceH.Reset)

	// Child routes: require an active PIN session on a paired device
	mux.Handle("GET /api/device/activities", child(s.deviceH.Activities))
	mux.Handle("POST /api/device/activities/{id}/complete", child(s.deviceH.Complete))
	mux.Handle("GET /api/device/rewards", child(s.deviceH.Rewards))
	mux.Handle("POST /api/device/rewards/{id}/claim", child(s.deviceH.Claim))
	mux.Handle("GET /api/device/ws", child(ws.Handler(s.hub)))

	// Parent routes
	mux.Handle("POST /logout", parent(s.authH.Logout))
	mux.Handle("GET /api/me", parent(s.authH.Me))

	mux.Handle("POST /api/children", parent(s.childH.Create))
	mux.Handle("GET /api/children", parent(s.childH.List))
	mux.Handle("GET /api/children/{id}", parent(s.childH.Get))
	mux.Handle("PUT /api/children/{id}", parent(s.childH.Update))
	mux.Handle("DELETE /api/children/{id}", parent(s.childH.Delete))
	mux.Handle("PUT /api/children/sort", parent(s.childH.Reorder))

	mux.Handle("POST /api/devices/pair", parent(s.deviceH.Pair))

	mux.Handle("POST /api/activities", parent(s.activityH.Create))
	mux.Handle("GET /api/activities", parent(s.activityH.List))
	mux.Handle("PUT /api/activities/{id}", parent(s.activityH.Update))
	mux.Handle("POST /api/activities/{id}/toggle", parent(s.activityH.Toggle))
	mux.Handle("DELETE /api/activities/{id}", parent(s.activityH.Delete))
	mux.Handle("DELETE /api/series/{series_id}", parent(s.activityH.DeleteSeries))

	mux.Handle("POST /api/rewards", parent(s.rewardH.Create))
	mux.Handle("GET /api/rewards", parent(s.rewardH.List))
	mux.Handle("PUT /api/rewards/{id}", parent(s.rewardH.Update))
	mux.Handle("POST /api/rewards/{id}/given", parent(s.rewardH.MarkGiven))
	mux.Handle("DELETE /api/rewards/{id}", parent(s.rewardH.Delete))

	mux.Handle("POST /api/media", parent(s.mediaH.Upload))

	mux.Handle("GET /api/ws", parent(ws.Handler(s.hub)))

	instrumented := metrics.Middleware(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(instrumented)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
