package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-day-scheduling/internal/calendar"
	"github.com/hackgods/doctor-day-scheduling/internal/checkpoint"
	"github.com/hackgods/doctor-day-scheduling/internal/coldstorage"
	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/config"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/db"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	"github.com/hackgods/doctor-day-scheduling/internal/mongodb"
	"github.com/hackgods/doctor-day-scheduling/internal/process"
	"github.com/hackgods/doctor-day-scheduling/internal/projection"
	"github.com/hackgods/doctor-day-scheduling/internal/queue"
	"github.com/hackgods/doctor-day-scheduling/internal/readmodel"
	redisclient "github.com/hackgods/doctor-day-scheduling/internal/redis"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
	"github.com/hackgods/doctor-day-scheduling/internal/subscription"
)

// subscriptions runs the projection subscription and the async command worker
// side by side. Either failing stops both.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("subscriptions", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString("logger setup error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Info("Starting up.", "env", cfg.Env, "subscription", cfg.SubscriptionName, "command_queue", cfg.CommandQueue)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	if err := readmodel.EnsureIndexes(rootCtx, mongoDB); err != nil {
		logger.Crit("Read model indexes failed.", "err", err)
		os.Exit(1)
	}

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

	store, err := eventlog.NewLoggingStore(eventlog.NewPostgresStore(pgPool), logger)
	if err != nil {
		logger.Crit("Event log setup failed.", "err", err)
		os.Exit(1)
	}
	codec := schema.NewCodec()
	commands := queue.NewRedisQueue(rdb, logger)

	handlers := []subscription.Handler{
		projection.NewAvailableSlots(readmodel.NewMongoAvailableSlots(mongoDB), codec),
		process.NewOverbooking(readmodel.NewMongoBookedSlots(mongoDB), commands, codec,
			cfg.BookingLimitPerPatient, cfg.CommandQueue, logger),
		process.NewArchiver(readmodel.NewMongoArchivableDays(mongoDB), store,
			coldstorage.NewGridFSStorage(mongoDB, cfg.ColdStorageBucket), commands, codec,
			cfg.ArchiveThreshold, cfg.CommandQueue, logger),
	}

	sub := subscription.New(
		subscription.Config{
			ID:           cfg.SubscriptionName,
			PollInterval: cfg.SubscriptionPoll,
			Filter:       subscription.StreamPrefix(day.StreamPrefix, calendar.StreamName),
		},
		store,
		checkpoint.NewStore(checkpoint.NewPostgresBackend(pgPool), cfg.CheckpointBatchSize, logger),
		logger,
		handlers...,
	)

	svc := command.NewService(store, codec, day.RandomSlotID, logger)
	hostname, _ := os.Hostname()
	worker := command.NewWorker(commands, svc, cfg.CommandQueue, "doctorday_command_handlers", hostname, logger)

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error { return sub.Run(ctx) })
	g.Go(func() error { return worker.Run(ctx) })

	if err := g.Wait(); err != nil && rootCtx.Err() == nil {
		logger.Crit("Stopped on error.", "err", err)
		os.Exit(1)
	}
	logger.Info("Shut down.")
}
