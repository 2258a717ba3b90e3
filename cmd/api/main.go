package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vendordesk.org/internal/httpapi"
	"vendordesk.org/internal/identity"
	"vendordesk.org/internal/obs"
	"vendordesk.org/internal/session"
	"vendordesk.org/internal/vendor"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("VENDORDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("VENDORDESK_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := identity.NewTokenCodec(os.Getenv("VENDORDESK_AUTH_SECRET"), "vendordesk")
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// The identity provider is a static choice made here, once: a configured
	// provider URL selects the hosted service, otherwise credentials are
	// verified against the local identities table.
	var provider identity.Provider
	if providerURL := os.Getenv("VENDORDESK_AUTH_PROVIDER_URL"); providerURL != "" {
		provider = identity.NewRemoteProvider(providerURL, os.Getenv("VENDORDESK_AUTH_PROVIDER_KEY"))
	} else {
		provider = identity.NewLocalProvider(db, codec)
	}

	sessions := session.NewManager(session.NewPGStore(db),
		session.WithSessionTTL(durationEnv("VENDORDESK_SESSION_TTL", 24*time.Hour)),
		session.WithRefreshTTL(durationEnv("VENDORDESK_REFRESH_TTL", 14*24*time.Hour)),
	)

	api := httpapi.New(httpapi.Config{
		Provider:    provider,
		Sessions:    sessions,
		Vendors:     vendor.NewPGStore(db),
		AdminTokens: codec,
		ReadyProbe:  httpapi.ReadyProbe{DB: db},
		Version:     version,
		CORSOrigins: splitEnv("VENDORDESK_CORS_ORIGINS"),
	})

	addr := os.Getenv("VENDORDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vendordesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return fallback
	}
	return d
}

func splitEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
