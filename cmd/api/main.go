package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/microcom/cyberquest/internal/config"
	"github.com/microcom/cyberquest/internal/handlers"
	"github.com/microcom/cyberquest/internal/logger"
	internalstorage "github.com/microcom/cyberquest/internal/storage"
	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/game"
	"github.com/microcom/cyberquest/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting CyberQuest API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"catalog", cfg.CatalogPath(),
		"session_backend", cfg.SessionBackend)

	// A broken catalog is fatal at startup; nothing is served with
	// inconsistent scenario data.
	cat, err := catalog.Load(cfg.CatalogPath())
	if err != nil {
		log.Error("Failed to load scenario catalog", "error", err)
		os.Exit(1)
	}
	log.Info("Scenario catalog loaded", "name", cat.Name(), "mode", cat.Mode(), "items", cat.Len())

	var store game.SessionStore
	switch cfg.SessionBackend {
	case "redis":
		redisStore := internalstorage.NewRedisStore(cfg.RedisURL, cfg.SessionTTL, log)
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := redisStore.WaitForConnection(waitCtx); err != nil {
			waitCancel()
			log.Error("Failed to connect to session store", "error", err)
			os.Exit(1)
		}
		waitCancel()
		store = redisStore
	default:
		store = storage.NewMemoryStore()
	}

	engine := game.NewEngine(cat, store, cfg.WinAt, cfg.LoseAt, log)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, cat, log))

	gameHandler := handlers.NewGameHandler(engine, cat, log)
	mux.Handle("/v1/game/", gameHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	// The in-memory backend needs an idle sweep; Redis expires keys on
	// its own via TTL.
	if cfg.SessionBackend == "memory" && cfg.SweepInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					removed, err := store.SweepIdle(gctx, cfg.IdleTimeout)
					if err != nil {
						log.Warn("Idle session sweep failed", "error", err)
						continue
					}
					if removed > 0 {
						log.Info("Swept idle sessions", "removed", removed)
					}
				}
			}
		})
	}

	err = g.Wait()

	if closeErr := store.Close(); closeErr != nil {
		log.Error("Error closing session store", "error", closeErr)
	}

	if err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}
