// Command server runs the identity HTTP API together with the outbox relay
// worker. A standalone relay lives in cmd/worker for deployments that scale
// delivery separately.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/identity-service/internal/api"
	"github.com/ignite/identity-service/internal/auth"
	"github.com/ignite/identity-service/internal/config"
	"github.com/ignite/identity-service/internal/email"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/ids"
	"github.com/ignite/identity-service/internal/repository/postgres"
	"github.com/ignite/identity-service/internal/service/outbox"
	"github.com/ignite/identity-service/internal/service/user"
	"github.com/ignite/identity-service/internal/worker"
)

func main() {
	log.Println("Starting identity service...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := openDatabase(cfg)
	defer db.Close()

	redisClient := openRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	clk := clock.System{}
	gen := ids.NewV7()
	outboxStore := postgres.NewOutboxStore(db)
	uow := postgres.NewUnitOfWork(db, outboxStore, gen, clk)
	userRepo := postgres.NewUserRepo(db)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL(), clk)
	if err != nil {
		log.Fatalf("Failed to init token service: %v", err)
	}

	var throttle user.LoginThrottle
	if redisClient != nil {
		throttle = auth.NewRedisThrottle(redisClient, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow())
		log.Println("Login throttling enabled")
	}

	users := user.NewService(user.Deps{
		UoW:      uow,
		Repo:     userRepo,
		Hasher:   auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:   tokens,
		IDs:      gen,
		Clock:    clk,
		Throttle: throttle,
	})

	relayWorker := startRelay(cfg, outboxStore, uow, clk)

	health := api.NewHealthHandler(db, redisClient, outboxStore)
	server := api.NewServer(api.NewHandlers(users, health), tokens)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(cfg.Server.Addr()); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	relayWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("Stopped")
}

func openDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")
	return db
}

func openRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.URL == "" {
		log.Println("REDIS_URL not set; login throttling disabled")
		return nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}
	log.Println("Connected to redis")
	return client
}

func startRelay(cfg *config.Config, store *postgres.OutboxStore, uow *postgres.UnitOfWork, clk clock.Clock) *worker.RelayWorker {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sender, err := email.NewSESSender(ctx, email.SESConfig{
		Region:      cfg.Email.Region,
		AccessKey:   cfg.Email.AccessKey,
		SecretKey:   cfg.Email.SecretKey,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	})
	if err != nil {
		log.Fatalf("Failed to init SES sender: %v", err)
	}

	backoff := outbox.NewBackoff(outbox.BackoffConfig{
		MaxRetries:       cfg.Relay.MaxRetries,
		BaseFactor:       cfg.Relay.BackoffBaseFactor,
		MaxFactor:        cfg.Relay.BackoffMaxFactor,
		BaseDelaySeconds: cfg.Relay.BackoffBaseDelaySeconds,
		JitterMaxMillis:  int64(cfg.Relay.BackoffJitterMaxMillis),
	})

	registry := outbox.NewUserEventRegistry(sender, email.NewTemplateService())
	relay := outbox.NewRelay(uow, store, registry, backoff, clk)

	relayWorker := worker.NewRelayWorker(relay, worker.RelayWorkerConfig{
		IdleInterval: cfg.Relay.Interval(),
		BatchSize:    cfg.Relay.BatchSize,
	})
	if err := relayWorker.Start(); err != nil {
		log.Fatalf("Failed to start relay worker: %v", err)
	}
	return relayWorker
}
