package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/openspot/openspot/internal/backup"
	"github.com/openspot/openspot/internal/billing"
	bhandler "github.com/openspot/openspot/internal/billing/handler"
	"github.com/openspot/openspot/internal/billing/reconcile"
	bstripe "github.com/openspot/openspot/internal/billing/stripe"
	"github.com/openspot/openspot/internal/email"
	"github.com/openspot/openspot/internal/handler"
	"github.com/openspot/openspot/internal/middleware"
	"github.com/openspot/openspot/internal/push"
	"github.com/openspot/openspot/internal/store"
	ws "github.com/openspot/openspot/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	spotH       *handler.SpotHandler
	favoriteH   *handler.FavoriteHandler
	pushH       *handler.PushHandler
	adminH      *handler.AdminHandler
	checkoutH   *bhandler.CheckoutHandler
	webhookH    *bhandler.WebhookHandler
	verifyH     *bhandler.VerifyHandler
	statusH     *bhandler.StatusHandler
	sessions    *store.SessionStore
	profiles    *store.ProfileStore
	magicLinks  *store.MagicLinkStore
	spots       *store.SpotStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, stripeClient *bstripe.Client, catalog billing.Catalog, backupCfg backup.Config, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	profileStore := store.NewProfileStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	spotStore := store.NewSpotStore(db)
	reportStore := store.NewReportStore(db)
	favoriteStore := store.NewFavoriteStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	backupSvc := backup.NewService(backupCfg, db, backupStore, logger.With("component", "backup"))

	var pushSvc *push.Service
	var alerter *push.Alerter
	var vapidPublicKey string
	if pushCfg.Enabled() {
		pushSvc = push.NewService(pushCfg)
		alerter = push.NewAlerter(favoriteStore, pushStore, pushSvc, logger.With("component", "push"))
		vapidPublicKey = pushCfg.VAPIDPublicKey
	}

	reconciler := reconcile.New(profileStore, catalog, logger.With("component", "reconcile"))

	s := &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(profileStore, sessionStore, magicLinkStore, emailClient, logger.With("component", "auth")),
		spotH:       handler.NewSpotHandler(spotStore, reportStore, hub, alerter, logger.With("component", "spot")),
		favoriteH:   handler.NewFavoriteHandler(favoriteStore, logger.With("component", "favorite")),
		pushH:       handler.NewPushHandler(pushStore, vapidPublicKey, logger.With("component", "push_handler")),
		adminH:      handler.NewAdminHandler(profileStore, sessionStore, backupStore, backupSvc, logger.With("component", "admin")),
		statusH:     bhandler.NewStatusHandler(profileStore),
		sessions:    sessionStore,
		profiles:    profileStore,
		magicLinks:  magicLinkStore,
		spots:       spotStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}

	if stripeClient != nil {
		billingLogger := logger.With("component", "billing")
		s.checkoutH = bhandler.NewCheckoutHandler(stripeClient, profileStore, catalog, billingLogger)
		s.webhookH = bhandler.NewWebhookHandler(stripeClient, reconciler, billingLogger)
		s.verifyH = bhandler.NewVerifyHandler(stripeClient, reconciler, billingLogger)
	}

	return s
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinks
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// SpotStore returns the spot store for the expiry sweep.
func (s *Server) SpotStore() *store.SpotStore {
	return s.spots
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/login", s.limitByIP("login", 10, s.authH.Login))
	outerMux.HandleFunc("GET /auth/verify", s.authH.Verify)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Stripe calls this endpoint directly; authentication is the signature.
	if s.webhookH != nil {
		outerMux.HandleFunc("POST /api/billing/webhook", s.webhookH.HandleStripeWebhook)
	}

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions, s.profiles)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// limitByIP rate-limits a handler per client IP. The scope keeps different
// endpoints from sharing a window.
func (s *Server) limitByIP(scope string, limit int, h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return scope + ":" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Spot API routes
	mux.HandleFunc("POST /api/spots", s.limitByIP("spot_create", 30, s.spotH.Create))
	mux.HandleFunc("GET /api/spots", s.spotH.List)
	mux.HandleFunc("GET /api/spots/{id}", s.spotH.Get)
	mux.HandleFunc("PUT /api/spots/{id}", s.spotH.Update)
	mux.HandleFunc("DELETE /api/spots/{id}", s.spotH.Delete)
	mux.HandleFunc("POST /api/spots/{id}/reports", s.spotH.CreateReport)
	mux.HandleFunc("GET /api/spots/{id}/reports", s.spotH.ListReports)

	// Favorite API routes
	mux.HandleFunc("POST /api/favorites", s.favoriteH.Create)
	mux.HandleFunc("GET /api/favorites", s.favoriteH.List)
	mux.HandleFunc("DELETE /api/favorites/{id}", s.favoriteH.Delete)

	// Push notification API routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)

	// Billing API routes
	mux.HandleFunc("GET /api/billing/status", s.statusH.SubscriptionStatus)
	if s.checkoutH != nil {
		mux.HandleFunc("POST /api/billing/checkout", s.checkoutH.CreateCheckoutSession)
		mux.HandleFunc("POST /api/billing/portal", s.checkoutH.BillingPortal)
		mux.HandleFunc("POST /api/billing/verify-session", s.verifyH.VerifySession)
	}

	// Admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/admin/profiles/{id}/suspend", s.adminH.Suspend)
	adminMux.HandleFunc("POST /api/admin/profiles/{id}/unsuspend", s.adminH.Unsuspend)
	adminMux.HandleFunc("POST /api/admin/backups", s.adminH.RunBackup)
	adminMux.HandleFunc("GET /api/admin/backups", s.adminH.ListBackups)
	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
