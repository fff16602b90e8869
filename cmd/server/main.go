package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturia/internal/cache"
	"facturia/internal/config"
	"facturia/internal/httpapi"
	"facturia/internal/kv"
	"facturia/internal/repository"
	"facturia/internal/service"
	"facturia/internal/settings"
	"facturia/internal/store"
	filestore "facturia/internal/store/file"
	"facturia/internal/store/memory"
	pgstore "facturia/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var substrate store.Substrate
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with a fallback", err)
		}
		substrate = pg
		closers = append(closers, pg.Close)
		log.Println("substrate: postgres")
	case cfg.DataDir != "":
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			log.Fatalf("data dir %s unusable: %v", cfg.DataDir, err)
		}
		substrate = fs
		log.Printf("substrate: file (%s)", cfg.DataDir)
	default:
		substrate = memory.New()
		log.Println("substrate: in-memory (data is lost on exit)")
	}

	tableCache := cache.TableCache(cache.NoopTableCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisTableCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			tableCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	kvStore := kv.New(substrate, kv.WithCache(tableCache, time.Duration(cfg.CacheTTLSeconds)*time.Second))
	repos := repository.New(kvStore)
	settingsSvc := settings.New(substrate, repos.History)
	svc := service.New(repos, settingsSvc)

	// Replay interrupted sale confirmations before taking any traffic.
	if err := svc.Recover(ctx); err != nil {
		log.Fatalf("recovery failed: %v", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repos.Users)
	api := httpapi.New(svc, settingsSvc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("facturia backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
