package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/buscoapp/busco/internal/billing"
	"github.com/buscoapp/busco/internal/database"
	"github.com/buscoapp/busco/internal/imagestore"
	"github.com/buscoapp/busco/internal/logging"
	"github.com/buscoapp/busco/internal/push"
	"github.com/buscoapp/busco/internal/server"
)

func main() {
	genVAPID := flag.Bool("gen-vapid-keys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("BUSCO_VAPID_PUBLIC_KEY=%s\nBUSCO_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	logger := logging.Setup(os.Getenv("BUSCO_LOG_LEVEL"), os.Getenv("BUSCO_LOG_FORMAT"))

	port := os.Getenv("BUSCO_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("BUSCO_DB_PATH")
	if dbPath == "" {
		dbPath = "busco.db"
	}

	jwtSecret := os.Getenv("BUSCO_JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("BUSCO_JWT_SECRET is required")
		os.Exit(1)
	}

	baseURL := os.Getenv("BUSCO_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		JWTSecret:       jwtSecret,
		SetupToken:      os.Getenv("BUSCO_SETUP_TOKEN"),
		AllowedOrigins:  splitOrigins(os.Getenv("BUSCO_CORS_ORIGINS")),
		VAPIDPublicKey:  os.Getenv("BUSCO_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("BUSCO_VAPID_PRIVATE_KEY"),
		Billing: billing.Config{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PremiumPriceID: os.Getenv("STRIPE_PREMIUM_PRICE_ID"),
			SuccessURL:     baseURL + "/account?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:      baseURL + "/premium",
		},
		Images: imagestore.Config{
			Endpoint:      os.Getenv("BUSCO_S3_ENDPOINT"),
			Bucket:        os.Getenv("BUSCO_S3_BUCKET"),
			Region:        os.Getenv("BUSCO_S3_REGION"),
			AccessKey:     os.Getenv("BUSCO_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("BUSCO_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("BUSCO_S3_PUBLIC_URL"),
		},
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("busco api starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func splitOrigins(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
