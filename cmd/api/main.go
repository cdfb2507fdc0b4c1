package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dinukastorehub-cmd/ODF-data/internal/app"
	"github.com/dinukastorehub-cmd/ODF-data/internal/cache"
	"github.com/dinukastorehub-cmd/ODF-data/internal/config"
	"github.com/dinukastorehub-cmd/ODF-data/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store setup failed: %v", err)
	}
	defer dataStore.Close()

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis entry cache")
		entryCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer entryCache.Close()
		service = app.NewWithCache(cfg, dataStore, entryCache)
	} else {
		service = app.New(cfg, dataStore)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("ODF data API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "sql":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return store.NewSQLStore(db), nil
	case "seed":
		if err := os.MkdirAll(filepath.Dir(cfg.DataFile), 0o755); err != nil {
			return nil, err
		}
		return store.NewSeedFileStore(cfg.DataFile, cfg.SeedFile), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DataFile), 0o755); err != nil {
			return nil, err
		}
		return store.NewFileStore(cfg.DataFile), nil
	}
}
