package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/hackgods/doctor-day-scheduling/internal/command"
	"github.com/hackgods/doctor-day-scheduling/internal/config"
	"github.com/hackgods/doctor-day-scheduling/internal/day"
	"github.com/hackgods/doctor-day-scheduling/internal/db"
	"github.com/hackgods/doctor-day-scheduling/internal/eventlog"
	"github.com/hackgods/doctor-day-scheduling/internal/logging"
	redisclient "github.com/hackgods/doctor-day-scheduling/internal/redis"
	"github.com/hackgods/doctor-day-scheduling/internal/schema"
)

const (
	lockName = "calendar-clock"
	// marks live past the date they guard so a late replica still sees them
	markTTL = 48 * time.Hour
)

type clock struct {
	svc    *command.Service
	locker redisclient.Locker
	now    func() time.Time
	logger log15.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("calendar-clock", logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString("logger setup error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Info("Starting up.", "env", cfg.Env, "interval", cfg.CalendarInterval)

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

	c := &clock{
		svc:    command.NewService(store, schema.NewCodec(), day.RandomSlotID, logger),
		locker: redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		now:    time.Now,
		logger: logger,
	}

	// Run once at startup
	c.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.CalendarInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("Shutdown signal received, stopping calendar clock.")
			return
		case <-ticker.C:
			c.runOnce(rootCtx)
		}
	}
}

// runOnce starts today's calendar day unless some replica already did.
func (c *clock) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	today := day.DateOf(c.now())
	key := "calendar:day-started:" + today.Format(day.DateLayout)

	err := c.locker.WithLock(runCtx, lockName, func(ctx context.Context) error {
		first, err := c.locker.MarkOnce(ctx, key, markTTL)
		if err != nil || !first {
			return err
		}
		cmdCtx := eventlog.WithMetadata(ctx, eventlog.Metadata{CorrelationID: key})
		if _, err := c.svc.Handle(cmdCtx, command.StartCalendarDay{Date: today}); err != nil {
			// the next tick must be able to try again
			if ferr := c.locker.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				c.logger.Error("Could not clear calendar mark.", "key", key, "err", ferr)
			}
			return err
		}
		c.logger.Info("Calendar day started.", "date", today.Format(day.DateLayout))
		return nil
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		c.logger.Debug("Another replica holds the calendar lock.")
	case err != nil:
		c.logger.Error("Calendar tick failed.", "err", err)
	}
}
