package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/doctor-day-scheduling/internal/api"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/config"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/db"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	"github.com/hackgods/doctor-day-scheduling/internal/mongodb"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
	redisclient "github.com/hackgods/doctor-day-scheduling/internal/redis"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("api-server", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString("logger setup error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Info("Starting up.", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgPool, err := db.ConnectPostgres(rootCtx, cfg.PostgresDSN, logger)
	if err != nil {
		logger.Crit("Postgres connection failed.", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	if err := db.Migrate(rootCtx, pgPool); err != nil {
		logger.Crit("Migration failed.", "err", err)
		os.Exit(1)
	}
	logger.Info("Connected to Postgres.")

	// Connect Mongo
	mongoClient, mongoDB, err := mongodb.Connect(rootCtx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Crit("Mongo connection failed.", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("Error closing mongo.", "err", err)
		}
	}()
	logger.Info("Connected to Mongo.", "database", cfg.MongoDatabase)

	// Redis is only probed for readiness here
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Crit("Redis connection failed.", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Error closing redis.", "err", err)
		}
	}()
	logger.Info("Connected to Redis.")

	store, err := eventlog.NewLoggingStore(eventlog.NewPostgresStore(pgPool), logger)
	if err != nil {
		logger.Crit("Event log setup failed.", "err", err)
		os.Exit(1)
	}
	svc := command.NewService(store, schema.NewCodec(), day.RandomSlotID, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		AvailableSlots: readmodel.NewMongoAvailableSlots(mongoDB),
		Dependencies: []api.Dependency{
			{Name: "postgres", Pinger: pgPool},
			{Name: "mongo", Pinger: mongodb.Pinger{Client: mongoClient}},
			{Name: "redis", Pinger: redisclient.Pinger{Client: rdb}, Optional: true},
		},
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Listening.", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed.", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed.", "err", err)
	}
}
