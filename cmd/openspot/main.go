package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openspot/openspot/internal/backup"
	"github.com/openspot/openspot/internal/billing"
	bstripe "github.com/openspot/openspot/internal/billing/stripe"
	"github.com/openspot/openspot/internal/database"
	"github.com/openspot/openspot/internal/email"
	"github.com/openspot/openspot/internal/logging"
	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/push"
	"github.com/openspot/openspot/internal/server"
	ws "github.com/openspot/openspot/internal/websocket"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keygen" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate vapid keys: %v", err)
		}
		fmt.Printf("OPENSPOT_VAPID_PUBLIC_KEY=%s\n", pub)
		fmt.Printf("OPENSPOT_VAPID_PRIVATE_KEY=%s\n", priv)
		return
	}

	port := envOr("OPENSPOT_PORT", "8080")
	dbPath := envOr("OPENSPOT_DB_PATH", "openspot.db")
	baseURL := envOr("OPENSPOT_BASE_URL", "http://localhost:"+port)

	logger := logging.Setup(envOr("OPENSPOT_LOG_LEVEL", "info"), envOr("OPENSPOT_LOG_FORMAT", "text"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("OPENSPOT_POSTMARK_TOKEN"),
		envOr("OPENSPOT_FROM_EMAIL", "noreply@openspot.app"),
		baseURL,
	)

	catalog := billing.NewCatalog(
		os.Getenv("STRIPE_PRICE_BASIC"),
		os.Getenv("STRIPE_PRICE_PRO"),
		os.Getenv("STRIPE_PRICE_ENTERPRISE"),
	)

	var stripeClient *bstripe.Client
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		stripeClient = bstripe.NewClient(bstripe.Config{
			SecretKey:     key,
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     baseURL + "/billing/cancel",
		})
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, billing endpoints disabled")
	}

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("OPENSPOT_S3_ENDPOINT"),
			Bucket:    os.Getenv("OPENSPOT_S3_BUCKET"),
			Region:    envOr("OPENSPOT_S3_REGION", "auto"),
			AccessKey: os.Getenv("OPENSPOT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("OPENSPOT_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("OPENSPOT_BACKUP_PASSPHRASE"),
	}

	pushCfg := push.Config{
		VAPIDPublicKey:  os.Getenv("OPENSPOT_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("OPENSPOT_VAPID_PRIVATE_KEY"),
	}

	srv := server.New(db, emailClient, stripeClient, catalog, backupCfg, pushCfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupLoop(ctx, srv, logger)

	go func() {
		logger.Info("openspot listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// cleanupLoop expires stale records once an hour: sessions, magic links,
// rate-limit buckets, and open spots past their expiry time.
func cleanupLoop(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	housekeeping := time.NewTicker(time.Hour)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			expired, err := srv.SpotStore().ExpireStale()
			if err != nil {
				logger.Error("expire stale spots", "error", err)
				continue
			}
			for _, id := range expired {
				srv.Hub().Broadcast(ws.NewMessage("spot", model.SpotExpired, id, nil))
			}
		case <-housekeeping.C:
			if _, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("delete expired sessions", "error", err)
			}
			if _, err := srv.MagicLinkStore().DeleteExpired(); err != nil {
				logger.Error("delete expired magic links", "error", err)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}
