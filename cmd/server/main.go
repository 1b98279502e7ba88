package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	carthandler "cartsync/internal/cart/handler"
	cartmetrics "cartsync/internal/cart/metrics"
	"cartsync/internal/cart/ports"
	cartservice "cartsync/internal/cart/service"
	cartstore "cartsync/internal/cart/store"
	catalogstore "cartsync/internal/catalog/store"
	"cartsync/internal/identity"
	identityhandler "cartsync/internal/identity/handler"
	"cartsync/internal/identity/session"
	"cartsync/internal/identity/token"
	"cartsync/internal/platform/config"
	"cartsync/internal/platform/httpserver"
	"cartsync/internal/platform/logger"
	platformmetrics "cartsync/internal/platform/metrics"
	platformredis "cartsync/internal/platform/redis"
	httptransport "cartsync/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	health := make(map[string]httptransport.HealthChecker)

	var (
		db           *sql.DB
		cartRows     ports.Store
		catalogReads ports.CatalogReader
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		for _, schema := range []string{cartstore.Schema, catalogstore.Schema} {
			if _, err := db.Exec(schema); err != nil {
				log.Error("apply schema", "error", err)
				os.Exit(1)
			}
		}
		cartRows = cartstore.NewPostgres(db)
		catalogReads = catalogstore.NewPostgres(db)
		health["postgres"] = db.PingContext
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
		cartRows = cartstore.NewMemory()
		catalogReads = catalogstore.NewMemory()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var sessions session.Store
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedis(redisClient.Client)
		health["redis"] = redisClient.Health
	} else {
		log.Warn("REDIS_URL not set, using in-memory sessions")
		sessions = session.NewInMemory()
	}

	notifier := identity.NewNotifier()
	tokens := token.New(cfg.JWTSigningKey, "cartsync")
	identitySvc := identity.NewService(notifier, sessions, tokens, cfg.SessionTTL, log)

	engine, err := cartservice.New(cartRows, catalogReads, notifier,
		cartservice.WithLogger(log),
		cartservice.WithMetrics(cartmetrics.New()),
	)
	if err != nil {
		log.Error("build cart engine", "error", err)
		os.Exit(1)
	}
	engine.Start()

	router := httptransport.NewRouter(httptransport.Deps{
		Cart:     carthandler.New(engine, log),
		Identity: identityhandler.New(identitySvc, log),
		Resolver: identitySvc,
		Logger:   log,
		Metrics:  platformmetrics.New(),
		Health:   health,
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting cartsync", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	// Drain in-flight remote cart writes before the process exits.
	if err := engine.Close(ctx); err != nil {
		log.Error("cart engine drain timed out", "error", err)
	}
}
