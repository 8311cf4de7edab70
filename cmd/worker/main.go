// Command worker runs the outbox relay on its own, for deployments that
// scale event delivery independently of the HTTP API. Multiple workers can
// poll the same outbox; skip-locked leasing keeps them from colliding.
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

	"github.com/ignite/identity-service/internal/config"
	"github.com/ignite/identity-service/internal/email"
	"github.com/ignite/identity-service/internal/pkg/clock"
	"github.com/ignite/identity-service/internal/pkg/ids"
	"github.com/ignite/identity-service/internal/repository/postgres"
	"github.com/ignite/identity-service/internal/service/outbox"
	"github.com/ignite/identity-service/internal/worker"
)

func main() {
	log.Println("Starting outbox relay worker...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	sesCtx, cancelSES := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSES()
	sender, err := email.NewSESSender(sesCtx, email.SESConfig{
		Region:      cfg.Email.Region,
		AccessKey:   cfg.Email.AccessKey,
		SecretKey:   cfg.Email.SecretKey,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	})
	if err != nil {
		log.Fatalf("Failed to init SES sender: %v", err)
	}

	clk := clock.System{}
	store := postgres.NewOutboxStore(db)
	uow := postgres.NewUnitOfWork(db, store, ids.NewV7(), clk)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	relayWorker.Stop()
	log.Println("Worker stopped")
}
