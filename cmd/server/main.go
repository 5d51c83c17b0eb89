/*
main.go - Application entry point

PURPOSE:
  Starts the ledger balance synchronization service: store, engine,
  HTTP API, daily sweep scheduler and (optionally) the Kafka consumer.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Open the ledger store (memory, sqlite or postgres)
  3. Pick the account lock (redis when REDIS_ADDR is set, else in-process)
  4. Build the engine
  5. Start the sweep scheduler and the Kafka consumer
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS (override configuration):
  -port    HTTP server port
  -driver  Store driver: memory, sqlite, postgres
  -db      SQLite database path; ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the consumer and the scheduler
  2. Stop accepting new connections, drain requests (30s timeout)
  3. Flush debounced recomputations
  4. Close the store

EXAMPLES:
  ./server -db="./data/ledger.db"
  STORE_DRIVER=postgres POSTGRES_HOST=db ./server
  KAFKA_BROKERS=localhost:9092 REACTOR_MODE=delta ./server
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/warp/ledger-sync/api"
	"github.com/warp/ledger-sync/config"
	"github.com/warp/ledger-sync/events/kafka"
	"github.com/warp/ledger-sync/ledger"
	"github.com/warp/ledger-sync/ledger/store"
	"github.com/warp/ledger-sync/lock/redislock"
	"github.com/warp/ledger-sync/store/postgres"
	"github.com/warp/ledger-sync/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	driver := flag.String("driver", cfg.Store.Driver, "Store driver: memory, sqlite, postgres")
	dbPath := flag.String("db", cfg.Store.SQLitePath, "SQLite database path")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Store.Driver = *driver
	cfg.Store.SQLitePath = *dbPath
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Store
	ledgerStore, closer, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closer.Close()
	log.Printf("Using %s store", cfg.Store.Driver)

	// Engine
	loc, _ := cfg.Location()
	opts := ledger.Options{
		PageSize:     cfg.Engine.PageSize,
		UserPageSize: cfg.Engine.UserPageSize,
		Location:     loc,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		locker := redislock.New(rdb, redislock.Config{TTL: cfg.Redis.LockTTL})
		if err := locker.Ping(ctx); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		opts.Locker = locker
		log.Printf("Using redis account locks at %s", cfg.Redis.Addr)
	}

	engine := ledger.NewEngine(ledgerStore, ledger.EngineConfig{
		Options: opts,
		Reactor: ledger.ReactorConfig{
			Mode:     ledger.Mode(cfg.Reactor.Mode),
			Debounce: cfg.Reactor.Debounce,
			Timeout:  cfg.Engine.InvocationTimeout,
		},
	})

	// Scheduler
	scheduler := api.NewSweepScheduler(engine)
	scheduler.Interval = cfg.Sweep.Interval
	scheduler.RunOnStart = cfg.Sweep.RunOnStart
	scheduler.Start()

	// HTTP
	handler := api.NewHandler(engine, ledgerStore)
	handler.StoreName = cfg.Store.Driver
	handler.Scheduler = scheduler

	// Kafka
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, GroupID: cfg.Kafka.GroupID}
		publisher := kafka.NewPublisher(kcfg)
		defer publisher.Close()
		handler.Publisher = publisher

		consumer := kafka.NewConsumer(kcfg, engine.Reactor)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				log.Printf("[Kafka] Consumer exited: %v", err)
			}
			consumer.Close()
		}()
		log.Printf("Consuming notifications from %s on %v", kcfg.Topic, kcfg.Brokers)
	} else {
		close(consumerDone)
	}

	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		JWTSecret:      cfg.JWT.SecretKey,
		RequestTimeout: 2 * cfg.Engine.InvocationTimeout,
	})
	if cfg.JWT.SecretKey == "" {
		log.Println("Warning: JWT_SECRET_KEY not set, admin routes are unauthenticated")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.Engine.InvocationTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	stopConsumer()
	<-consumerDone
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	engine.Close()
	log.Println("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.FullStore, io.Closer, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), closerFunc(func() error { return nil }), nil
	case "sqlite":
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		db, err := postgres.Open(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Name:     cfg.Postgres.Name,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		s := postgres.New(db)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
