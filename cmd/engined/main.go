package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/config"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/httpapi"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("SENTRY_CONFIG", ""), "path to YAML config")
	dbPath := flag.String("db", envOr("SENTRY_DB", ""), "sqlite path (overrides config)")
	addr := flag.String("addr", envOr("SENTRY_ADDR", ""), "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	store, err := modelstore.NewStore(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	registry := httpapi.NewRegistry(cfg, store, logNotification)
	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandlers(registry, store))

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	fmt.Println("Usage Sentry engine daemon ready.")
	fmt.Printf("  DB: %s | Addr: %s\n", cfg.Storage.Path, cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Drain in-flight requests first so the shutdown checkpoints capture the
	// final state of every engine.
	log.Println("shutting down, draining requests")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	registry.CheckpointAll(logging.TriggerShutdown)
	log.Println("all engines checkpointed, exiting")
}

// #endregion main

// #region helpers

// logNotification surfaces overuse notifications on the daemon log.
func logNotification(n engine.Notification) {
	log.Printf("[NOTIFY] subject=%s turn=%s vote=%d confidence=%.2f spc_alarmed=%v",
		n.SubjectID, n.TurnID, n.Vote, n.Confidence, n.SPCAlarmed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
